package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bestInputs() Inputs {
	return Inputs{
		Structural: Structural{
			VerticalProfile:      "belowGradeTrench",
			TrenchCompatibility:  "deckReady",
			GeotechnicalRisk:     "low",
			StructuralInterfaces: "none",
		},
		Cost: Cost{
			DeckLengthFt: 1800,
			ClearWidthFt: 180,
		},
		Schedule: Schedule{
			TrafficOpsConstraint:  "flexible",
			ConstructionStaging:   "linear",
			WorkWindows:           "standard",
			SubsurfaceUncertainty: "well_documented",
		},
		Urban: Urban{
			ContextIntensity:        "dense",
			ConnectivityRestoration: "major",
			PublicRealmOpportunity:  "large",
			DestinationAdjacency:    "multiple",
		},
		Political: Political{
			OwnershipControl:  "city",
			PriorStudies:      true,
			JurisdictionCount: 1,
		},
	}
}

func TestEvaluatePerfectSegment(t *testing.T) {
	r, err := Evaluate(bestInputs())
	require.NoError(t, err)

	assert.Equal(t, 25, r.Structural.Score)
	assert.Equal(t, 25, r.Cost.Score)
	assert.Equal(t, 20, r.Schedule.Score)
	assert.Equal(t, 20, r.Urban.Score)
	assert.Equal(t, 10, r.Political.Score)
	assert.Equal(t, 100, r.Total)
	assert.Equal(t, "Most feasible", r.Grade)
	assert.Empty(t, r.Structural.Penalties)
}

func TestEvaluateUnknownSegmentRanksLow(t *testing.T) {
	r, err := Evaluate(Defaults())
	require.NoError(t, err)

	// Every categorical field scores as the risky end, numerics are
	// zero, and prior studies default to absent.
	assert.Equal(t, 0, r.Structural.Score)
	assert.Equal(t, 25, r.Cost.Score)
	assert.Equal(t, 0, r.Schedule.Score)
	assert.Equal(t, 0, r.Urban.Score)
	assert.Equal(t, 3, r.Political.Score)
	assert.Equal(t, 28, r.Total)
	assert.Equal(t, "Least feasible", r.Grade)
}

func TestEvaluateMixedSegment(t *testing.T) {
	in := Inputs{
		Structural: Structural{
			VerticalProfile:      "partiallyBelowGrade",
			TrenchCompatibility:  "possibleWithMajorRebuild",
			GeotechnicalRisk:     "moderate",
			StructuralInterfaces: "some",
		},
		Cost: Cost{
			DeckLengthFt:            3500,
			ClearWidthFt:            250,
			RampsWithinSegment:      5,
			MajorInterchangePresent: true,
		},
		Schedule: Schedule{
			TrafficOpsConstraint:  "moderate",
			ConstructionStaging:   "multi_phase",
			WorkWindows:           "restricted",
			SubsurfaceUncertainty: "moderate_uncertainty",
		},
		Urban: Urban{
			ContextIntensity:        "moderate",
			ConnectivityRestoration: "partial",
			PublicRealmOpportunity:  "moderate",
			DestinationAdjacency:    "one",
		},
		Political: Political{
			OwnershipControl:  "state",
			PriorStudies:      true,
			JurisdictionCount: 2,
		},
	}

	r, err := Evaluate(in)
	require.NoError(t, err)

	assert.Equal(t, 12, r.Structural.Score)
	assert.Equal(t, 1, r.Cost.Score)
	assert.Equal(t, 10, r.Schedule.Score)
	assert.Equal(t, 10, r.Urban.Score)
	assert.Equal(t, 6, r.Political.Score)
	assert.Equal(t, 39, r.Total)
	assert.Equal(t, "Challenged", r.Grade)
}

func TestEvaluateCostFloorsAtZero(t *testing.T) {
	in := bestInputs()
	in.Cost = Cost{
		DeckLengthFt:            5000,
		ClearWidthFt:            350,
		RampsWithinSegment:      10,
		MajorInterchangePresent: true,
	}

	r, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Cost.Score)
	// Ramp deductions cap at 8 points.
	for _, p := range r.Cost.Penalties {
		if p.Field == "rampsWithinSegment" {
			assert.Equal(t, 8, p.Points)
		}
	}
}

func TestGradeLabelBands(t *testing.T) {
	cases := []struct {
		total int
		want  string
	}{
		{100, "Most feasible"},
		{85, "Most feasible"},
		{84, "Favorable"},
		{70, "Favorable"},
		{69, "Moderate"},
		{50, "Moderate"},
		{49, "Challenged"},
		{30, "Challenged"},
		{29, "Least feasible"},
		{0, "Least feasible"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, GradeLabel(tc.total), "total %d", tc.total)
	}
}

func TestValidateRejectsMalformedResults(t *testing.T) {
	good, err := Evaluate(bestInputs())
	require.NoError(t, err)
	require.NoError(t, Validate(good))

	bad := good
	bad.Total = 42
	assert.ErrorIs(t, Validate(bad), ErrMalformedResult)

	bad = good
	bad.Structural.Score = 30
	assert.ErrorIs(t, Validate(bad), ErrMalformedResult)

	bad = good
	bad.Urban.Max = 0
	assert.ErrorIs(t, Validate(bad), ErrMalformedResult)

	bad = good
	bad.Cost.Penalties = nil
	assert.ErrorIs(t, Validate(bad), ErrMalformedResult)
}
