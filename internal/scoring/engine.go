package scoring

import (
	"github.com/rotisserie/eris"
)

// ErrMalformedResult is returned by Validate when a computed result
// violates the scoring contract. Callers treat it as fatal.
var ErrMalformedResult = eris.New("scoring: malformed result")

// Penalty records one deduction applied inside a category.
type Penalty struct {
	Field  string `json:"field"`
	Label  string `json:"label"`
	Points int    `json:"points"`
}

// Category is one scored dimension: points remaining out of Max after
// applying the category's penalties, floored at zero.
type Category struct {
	Score     int       `json:"score"`
	Max       int       `json:"max"`
	Penalties []Penalty `json:"penalties"`
}

// Result is the full scorecard for a segment.
type Result struct {
	Structural Category `json:"structural"`
	Cost       Category `json:"cost"`
	Schedule   Category `json:"schedule"`
	Urban      Category `json:"urban"`
	Political  Category `json:"political"`
	Total      int      `json:"total"`
	Grade      string   `json:"grade"`
}

// Category maxima. The five sum to 100.
const (
	MaxStructural = 25
	MaxCost       = 25
	MaxSchedule   = 20
	MaxUrban      = 20
	MaxPolitical  = 10
)

func category(max int, penalties []Penalty) Category {
	score := max
	for _, p := range penalties {
		score -= p.Points
	}
	if score < 0 {
		score = 0
	}
	if penalties == nil {
		penalties = []Penalty{}
	}
	return Category{Score: score, Max: max, Penalties: penalties}
}

// lookup returns the deduction for value, falling back to the table's
// worst case for values it has never seen. Unknown fields score like
// the risky end of the scale, so a blank segment ranks low rather
// than artificially well.
func lookup(table map[string]int, value string, worst int) int {
	if pts, ok := table[value]; ok {
		return pts
	}
	return worst
}

var verticalProfileTable = map[string]int{
	"belowGradeTrench":    0,
	"partiallyBelowGrade": 4,
	"atGrade":             7,
	"elevatedOrViaduct":   10,
}

var trenchCompatibilityTable = map[string]int{
	"deckReady":                0,
	"possibleWithMajorRebuild": 4,
	"notCompatibleOrUnknown":   7,
}

var geotechnicalRiskTable = map[string]int{
	"low":           0,
	"moderate":      3,
	"highOrUnknown": 5,
}

var structuralInterfacesTable = map[string]int{
	"none":  0,
	"some":  2,
	"major": 3,
}

func scoreStructural(in Structural) Category {
	var p []Penalty
	if pts := lookup(verticalProfileTable, in.VerticalProfile, 10); pts > 0 {
		p = append(p, Penalty{"verticalProfile", "Vertical profile", pts})
	}
	if pts := lookup(trenchCompatibilityTable, in.TrenchCompatibility, 7); pts > 0 {
		p = append(p, Penalty{"trenchCompatibility", "Trench compatibility", pts})
	}
	if pts := lookup(geotechnicalRiskTable, in.GeotechnicalRisk, 5); pts > 0 {
		p = append(p, Penalty{"geotechnicalRisk", "Geotechnical risk", pts})
	}
	if pts := lookup(structuralInterfacesTable, in.StructuralInterfaces, 3); pts > 0 {
		p = append(p, Penalty{"structuralInterfaces", "Structural interfaces", pts})
	}
	return category(MaxStructural, p)
}

func scoreCost(in Cost) Category {
	var p []Penalty
	switch {
	case in.ClearWidthFt > 300:
		p = append(p, Penalty{"clearWidthFt", "Clear width over 300 ft", 6})
	case in.ClearWidthFt > 240:
		p = append(p, Penalty{"clearWidthFt", "Clear width over 240 ft", 4})
	case in.ClearWidthFt > 200:
		p = append(p, Penalty{"clearWidthFt", "Clear width over 200 ft", 2})
	}
	switch {
	case in.DeckLengthFt > 4000:
		p = append(p, Penalty{"deckLengthFt", "Deck length over 4000 ft", 6})
	case in.DeckLengthFt > 3000:
		p = append(p, Penalty{"deckLengthFt", "Deck length over 3000 ft", 4})
	case in.DeckLengthFt > 2000:
		p = append(p, Penalty{"deckLengthFt", "Deck length over 2000 ft", 2})
	}
	if in.RampsWithinSegment > 0 {
		pts := in.RampsWithinSegment * 2
		if pts > 8 {
			pts = 8
		}
		p = append(p, Penalty{"rampsWithinSegment", "Ramps within segment", pts})
	}
	if in.MajorInterchangePresent {
		p = append(p, Penalty{"majorInterchangePresent", "Major interchange present", 8})
	}
	return category(MaxCost, p)
}

var trafficOpsTable = map[string]int{
	"flexible": 0,
	"moderate": 4,
	"severe":   8,
}

var stagingTable = map[string]int{
	"linear":      0,
	"multi_phase": 3,
	"brittle":     6,
}

var workWindowsTable = map[string]int{
	"standard":   0,
	"restricted": 2,
	"heavy":      4,
}

var subsurfaceTable = map[string]int{
	"well_documented":      0,
	"moderate_uncertainty": 1,
	"high_uncertainty":     2,
	"missing_data":         2,
}

func scoreSchedule(in Schedule) Category {
	var p []Penalty
	if pts := lookup(trafficOpsTable, in.TrafficOpsConstraint, 8); pts > 0 {
		p = append(p, Penalty{"trafficOpsConstraint", "Traffic operations constraint", pts})
	}
	if pts := lookup(stagingTable, in.ConstructionStaging, 6); pts > 0 {
		p = append(p, Penalty{"constructionStaging", "Construction staging", pts})
	}
	if pts := lookup(workWindowsTable, in.WorkWindows, 4); pts > 0 {
		p = append(p, Penalty{"workWindows", "Work window restrictions", pts})
	}
	if pts := lookup(subsurfaceTable, in.SubsurfaceUncertainty, 2); pts > 0 {
		p = append(p, Penalty{"subsurfaceUncertainty", "Subsurface uncertainty", pts})
	}
	return category(MaxSchedule, p)
}

var contextIntensityTable = map[string]int{
	"dense":    0,
	"moderate": 4,
	"low":      8,
}

var connectivityTable = map[string]int{
	"major":   0,
	"partial": 3,
	"minimal": 6,
}

var publicRealmTable = map[string]int{
	"large":    0,
	"moderate": 2,
	"limited":  4,
}

var destinationTable = map[string]int{
	"multiple": 0,
	"one":      1,
	"none":     2,
}

func scoreUrban(in Urban) Category {
	var p []Penalty
	if pts := lookup(contextIntensityTable, in.ContextIntensity, 8); pts > 0 {
		p = append(p, Penalty{"contextIntensity", "Context intensity", pts})
	}
	if pts := lookup(connectivityTable, in.ConnectivityRestoration, 6); pts > 0 {
		p = append(p, Penalty{"connectivityRestoration", "Connectivity restoration", pts})
	}
	if pts := lookup(publicRealmTable, in.PublicRealmOpportunity, 4); pts > 0 {
		p = append(p, Penalty{"publicRealmOpportunity", "Public realm opportunity", pts})
	}
	if pts := lookup(destinationTable, in.DestinationAdjacency, 2); pts > 0 {
		p = append(p, Penalty{"destinationAdjacency", "Destination adjacency", pts})
	}
	return category(MaxUrban, p)
}

var ownershipTable = map[string]int{
	"city":  0,
	"state": 2,
	"mixed": 4,
}

func scorePolitical(in Political) Category {
	var p []Penalty
	if pts := lookup(ownershipTable, in.OwnershipControl, 4); pts > 0 {
		p = append(p, Penalty{"ownershipControl", "Ownership and control", pts})
	}
	if !in.PriorStudies {
		p = append(p, Penalty{"priorStudies", "No prior studies", 3})
	}
	switch {
	case in.JurisdictionCount >= 3:
		p = append(p, Penalty{"jurisdictionCount", "Three or more jurisdictions", 3})
	case in.JurisdictionCount == 2:
		p = append(p, Penalty{"jurisdictionCount", "Two jurisdictions", 2})
	}
	return category(MaxPolitical, p)
}

// Evaluate scores the inputs against the rule table. The result is
// validated before return; a validation failure indicates a broken
// rule table and is returned as ErrMalformedResult.
func Evaluate(in Inputs) (Result, error) {
	r := Result{
		Structural: scoreStructural(in.Structural),
		Cost:       scoreCost(in.Cost),
		Schedule:   scoreSchedule(in.Schedule),
		Urban:      scoreUrban(in.Urban),
		Political:  scorePolitical(in.Political),
	}
	r.Total = r.Structural.Score + r.Cost.Score + r.Schedule.Score +
		r.Urban.Score + r.Political.Score
	r.Grade = GradeLabel(r.Total)
	if err := Validate(r); err != nil {
		return Result{}, err
	}
	return r, nil
}

// GradeLabel maps a total score to its presentation band.
func GradeLabel(total int) string {
	switch {
	case total >= 85:
		return "Most feasible"
	case total >= 70:
		return "Favorable"
	case total >= 50:
		return "Moderate"
	case total >= 30:
		return "Challenged"
	default:
		return "Least feasible"
	}
}

// Validate checks the scoring contract: every category score lies in
// [0, max], the maxima sum to 100, and the total equals the category
// sum.
func Validate(r Result) error {
	cats := []Category{r.Structural, r.Cost, r.Schedule, r.Urban, r.Political}
	maxSum, scoreSum := 0, 0
	for _, c := range cats {
		if c.Max <= 0 {
			return eris.Wrap(ErrMalformedResult, "category max must be positive")
		}
		if c.Score < 0 || c.Score > c.Max {
			return eris.Wrap(ErrMalformedResult, "category score out of range")
		}
		if c.Penalties == nil {
			return eris.Wrap(ErrMalformedResult, "category penalties missing")
		}
		maxSum += c.Max
		scoreSum += c.Score
	}
	if maxSum != 100 {
		return eris.Wrap(ErrMalformedResult, "category maxima must sum to 100")
	}
	if r.Total != scoreSum {
		return eris.Wrap(ErrMalformedResult, "total does not match category sum")
	}
	return nil
}
