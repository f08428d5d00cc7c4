package library

import "github.com/sells-group/capscreen/internal/model"

// InputKey identifies one entry of the master scoring-input list.
type InputKey struct {
	Category string
	Key      string
}

// Scoring-input categories.
const (
	CategoryStructural = "structural"
	CategoryCost       = "cost"
	CategorySchedule   = "schedule"
	CategoryUrban      = "urban"
	CategoryPolitical  = "political"
)

// MasterInputs is the fixed master list of scoring-input keys. Every
// segment gets exactly one placeholder row per entry at build time.
var MasterInputs = []InputKey{
	{CategoryStructural, "verticalProfile"},
	{CategoryStructural, "trenchCompatibility"},
	{CategoryStructural, "geotechnicalRisk"},
	{CategoryStructural, "structuralInterfaces"},

	{CategoryCost, "deckLengthFt"},
	{CategoryCost, "clearWidthFt"},
	{CategoryCost, "rampsWithinSegment"},
	{CategoryCost, "majorInterchangePresent"},

	{CategorySchedule, "trafficOpsConstraint"},
	{CategorySchedule, "constructionStaging"},
	{CategorySchedule, "workWindows"},
	{CategorySchedule, "subsurfaceUncertainty"},

	{CategoryUrban, "contextIntensity"},
	{CategoryUrban, "connectivityRestoration"},
	{CategoryUrban, "publicRealmOpportunity"},
	{CategoryUrban, "destinationAdjacency"},

	{CategoryPolitical, "ownershipControl"},
	{CategoryPolitical, "priorStudies"},
	{CategoryPolitical, "jurisdictionCount"},
}

// PlaceholderInputs returns the placeholder rows a freshly built
// segment is seeded with: value and confidence UNKNOWN, source SYSTEM.
func PlaceholderInputs(segmentID string) []model.SegmentInput {
	inputs := make([]model.SegmentInput, len(MasterInputs))
	for i, k := range MasterInputs {
		inputs[i] = model.SegmentInput{
			SegmentID:  segmentID,
			Category:   k.Category,
			Key:        k.Key,
			Value:      model.InputValueUnknown,
			Confidence: model.InputValueUnknown,
			Source:     model.InputSourceSystem,
		}
	}
	return inputs
}
