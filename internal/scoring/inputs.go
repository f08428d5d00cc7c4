// Package scoring implements the deterministic feasibility scorer: a
// fixed rule table that maps a segment's scoring inputs to five
// category scores and a 0-100 total, plus the rough-order cost model.
package scoring

import (
	"strconv"

	"github.com/sells-group/capscreen/internal/model"
)

// Structural covers trench geometry and subsurface certainty.
type Structural struct {
	VerticalProfile      string `json:"verticalProfile"`
	TrenchCompatibility  string `json:"trenchCompatibility"`
	GeotechnicalRisk     string `json:"geotechnicalRisk"`
	StructuralInterfaces string `json:"structuralInterfaces"`
}

// Cost covers the geometric and staging quantities that drive price.
type Cost struct {
	DeckLengthFt            float64 `json:"deckLengthFt"`
	ClearWidthFt            float64 `json:"clearWidthFt"`
	RampsWithinSegment      int     `json:"rampsWithinSegment"`
	MajorInterchangePresent bool    `json:"majorInterchangePresent"`
}

// Schedule covers constraints on construction flow and work windows.
type Schedule struct {
	TrafficOpsConstraint  string `json:"trafficOpsConstraint"`
	ConstructionStaging   string `json:"constructionStaging"`
	WorkWindows           string `json:"workWindows"`
	SubsurfaceUncertainty string `json:"subsurfaceUncertainty"`
}

// Urban covers how much urban value the cap can return.
type Urban struct {
	ContextIntensity        string `json:"contextIntensity"`
	ConnectivityRestoration string `json:"connectivityRestoration"`
	PublicRealmOpportunity  string `json:"publicRealmOpportunity"`
	DestinationAdjacency    string `json:"destinationAdjacency"`
}

// Political covers ownership, studies, and jurisdiction coordination.
type Political struct {
	OwnershipControl  string `json:"ownershipControl"`
	PriorStudies      bool   `json:"priorStudies"`
	JurisdictionCount int    `json:"jurisdictionCount"`
}

// Inputs is the normalized scoring input set for one segment.
type Inputs struct {
	Structural Structural `json:"structural"`
	Cost       Cost       `json:"cost"`
	Schedule   Schedule   `json:"schedule"`
	Urban      Urban      `json:"urban"`
	Political  Political  `json:"political"`
}

// Unknown is the normalized value for fields a user has not filled in
// yet. The rule table treats it as the risky end of each scale.
const Unknown = "unknown"

// Defaults returns an Inputs with every categorical field unknown and
// numerics zeroed.
func Defaults() Inputs {
	return Inputs{
		Structural: Structural{Unknown, Unknown, Unknown, Unknown},
		Schedule:   Schedule{Unknown, Unknown, Unknown, Unknown},
		Urban:      Urban{Unknown, Unknown, Unknown, Unknown},
		Political:  Political{OwnershipControl: Unknown},
	}
}

// FromRows normalizes persisted scoring-input rows against defaults.
// The second return lists dotted field names that stayed at their
// default because the row was absent, UNKNOWN, or unparseable.
func FromRows(rows []model.SegmentInput) (Inputs, []string) {
	in := Defaults()
	byKey := make(map[string]string, len(rows))
	for _, r := range rows {
		if r.Value != "" && r.Value != model.InputValueUnknown {
			byKey[r.Key] = r.Value
		}
	}

	var missing []string

	setStr := func(field *string, category, key string) {
		if v, ok := byKey[key]; ok {
			*field = v
			return
		}
		missing = append(missing, category+"."+key)
	}
	setFloat := func(field *float64, category, key string) {
		if v, ok := byKey[key]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*field = f
				return
			}
		}
		missing = append(missing, category+"."+key)
	}
	setInt := func(field *int, category, key string) {
		if v, ok := byKey[key]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				*field = n
				return
			}
		}
		missing = append(missing, category+"."+key)
	}
	setBool := func(field *bool, category, key string) {
		if v, ok := byKey[key]; ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*field = b
				return
			}
		}
		missing = append(missing, category+"."+key)
	}

	setStr(&in.Structural.VerticalProfile, "structural", "verticalProfile")
	setStr(&in.Structural.TrenchCompatibility, "structural", "trenchCompatibility")
	setStr(&in.Structural.GeotechnicalRisk, "structural", "geotechnicalRisk")
	setStr(&in.Structural.StructuralInterfaces, "structural", "structuralInterfaces")

	setFloat(&in.Cost.DeckLengthFt, "cost", "deckLengthFt")
	setFloat(&in.Cost.ClearWidthFt, "cost", "clearWidthFt")
	setInt(&in.Cost.RampsWithinSegment, "cost", "rampsWithinSegment")
	setBool(&in.Cost.MajorInterchangePresent, "cost", "majorInterchangePresent")

	setStr(&in.Schedule.TrafficOpsConstraint, "schedule", "trafficOpsConstraint")
	setStr(&in.Schedule.ConstructionStaging, "schedule", "constructionStaging")
	setStr(&in.Schedule.WorkWindows, "schedule", "workWindows")
	setStr(&in.Schedule.SubsurfaceUncertainty, "schedule", "subsurfaceUncertainty")

	setStr(&in.Urban.ContextIntensity, "urban", "contextIntensity")
	setStr(&in.Urban.ConnectivityRestoration, "urban", "connectivityRestoration")
	setStr(&in.Urban.PublicRealmOpportunity, "urban", "publicRealmOpportunity")
	setStr(&in.Urban.DestinationAdjacency, "urban", "destinationAdjacency")

	setStr(&in.Political.OwnershipControl, "political", "ownershipControl")
	setBool(&in.Political.PriorStudies, "political", "priorStudies")
	setInt(&in.Political.JurisdictionCount, "political", "jurisdictionCount")

	return in, missing
}

// ApplyGeometryDefaults backfills the deck length from the segment's
// own measured length when no user-entered value exists.
func (in *Inputs) ApplyGeometryDefaults(segmentLengthFt float64) {
	if in.Cost.DeckLengthFt == 0 {
		in.Cost.DeckLengthFt = segmentLengthFt
	}
}

// PartialTunnel reports whether the segment needs tunnel systems
// (ventilation, fire-life safety) in the cost model.
func (in Inputs) PartialTunnel() bool {
	return in.Structural.VerticalProfile == "partiallyBelowGrade"
}
