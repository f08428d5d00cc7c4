package scoring

import (
	"math"
	"sort"
)

// Assumptions holds the unit quantities and unit costs behind the
// rough-order cost model. All costs are 2025 dollars.
type Assumptions struct {
	SlabThicknessFt float64
	DeckThicknessFt float64
	GirderSpacingFt float64
	AssumedSpanFt   float64
	TonPerGirderFt  float64
	RebarLbPerCuYd  float64

	ConcretePerCuYd      float64
	RebarPerLb           float64
	WaterproofingPerSqFt float64
	GirderSteelPerTon    float64
	FoundationPerBent    float64

	UtilityAllowance        float64
	TrafficStagingAllowance float64
	TunnelSystemsAllowance  float64
}

// DefaultAssumptions returns the planning-level defaults used when no
// project-specific estimate exists.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		SlabThicknessFt: 2.5,
		DeckThicknessFt: 0.75,
		GirderSpacingFt: 10,
		AssumedSpanFt:   80,
		TonPerGirderFt:  0.1,
		RebarLbPerCuYd:  120,

		ConcretePerCuYd:      650,
		RebarPerLb:           1.20,
		WaterproofingPerSqFt: 12,
		GirderSteelPerTon:    5200,
		FoundationPerBent:    450000,

		UtilityAllowance:        0.10,
		TrafficStagingAllowance: 0.12,
		TunnelSystemsAllowance:  0.35,
	}
}

// Quantities are the material takeoffs for a cap deck of the given
// plan dimensions.
type Quantities struct {
	DeckAreaSqFt       float64 `json:"deckAreaSqFt"`
	SlabConcreteCuYd   float64 `json:"slabConcreteCuYd"`
	RebarLb            float64 `json:"rebarLb"`
	WaterproofingSqFt  float64 `json:"waterproofingSqFt"`
	GirderCount        int     `json:"girderCount"`
	GirderSteelTons    float64 `json:"girderSteelTons"`
	BentCount          int     `json:"bentCount"`
	FoundationSupports int     `json:"foundationSupports"`
}

// MaterialQuantities computes takeoffs from clear width and deck
// length in feet.
func MaterialQuantities(widthFt, lengthFt float64, a Assumptions) Quantities {
	area := widthFt * lengthFt
	slabCuYd := area * a.SlabThicknessFt / 27
	girders := int(math.Ceil(widthFt / a.GirderSpacingFt))
	bents := int(math.Ceil(lengthFt / a.AssumedSpanFt))
	return Quantities{
		DeckAreaSqFt:       area,
		SlabConcreteCuYd:   slabCuYd,
		RebarLb:            slabCuYd * a.RebarLbPerCuYd,
		WaterproofingSqFt:  area,
		GirderCount:        girders,
		GirderSteelTons:    float64(girders) * a.TonPerGirderFt * lengthFt,
		BentCount:          bents,
		FoundationSupports: bents * 2,
	}
}

// CostDriver is one line item in the estimate, largest first.
type CostDriver struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Estimate is a low/high rough-order cost range with its top drivers.
// High is fixed at 20 percent over low to reflect planning-level
// uncertainty.
type Estimate struct {
	Low        float64      `json:"low"`
	High       float64      `json:"high"`
	Quantities Quantities   `json:"quantities"`
	TopDrivers []CostDriver `json:"topDrivers"`
}

// CostEstimate prices the quantities for a segment. partialTunnel adds
// the ventilation and fire-life-safety allowance for decks long enough
// to read as tunnels.
func CostEstimate(widthFt, lengthFt float64, partialTunnel bool, a Assumptions) Estimate {
	q := MaterialQuantities(widthFt, lengthFt, a)

	drivers := []CostDriver{
		{"Structural concrete", q.SlabConcreteCuYd * a.ConcretePerCuYd},
		{"Reinforcing steel", q.RebarLb * a.RebarPerLb},
		{"Waterproofing", q.WaterproofingSqFt * a.WaterproofingPerSqFt},
		{"Girder steel", q.GirderSteelTons * a.GirderSteelPerTon},
		{"Foundations", float64(q.BentCount) * a.FoundationPerBent},
	}

	base := 0.0
	for _, d := range drivers {
		base += d.Amount
	}

	drivers = append(drivers,
		CostDriver{"Utility relocation allowance", base * a.UtilityAllowance},
		CostDriver{"Traffic staging allowance", base * a.TrafficStagingAllowance},
	)
	if partialTunnel {
		drivers = append(drivers,
			CostDriver{"Tunnel systems allowance", base * a.TunnelSystemsAllowance})
	}

	low := 0.0
	for _, d := range drivers {
		low += d.Amount
	}

	sort.Slice(drivers, func(i, j int) bool {
		return drivers[i].Amount > drivers[j].Amount
	})
	top := drivers
	if len(top) > 3 {
		top = top[:3]
	}

	return Estimate{
		Low:        low,
		High:       low * 1.2,
		Quantities: q,
		TopDrivers: top,
	}
}

// BuildApproach describes the structural system a deck of the given
// width implies, with its construction sequence.
type BuildApproach struct {
	System string   `json:"system"`
	Steps  []string `json:"steps"`
}

// ApproachFor selects the structural system narrative by clear width.
func ApproachFor(widthFt float64, partialTunnel bool) BuildApproach {
	var b BuildApproach
	switch {
	case widthFt <= 120:
		b.System = "Cast-in-place concrete slab on abutment walls"
		b.Steps = []string{
			"Install abutment walls along trench edges",
			"Form and pour deck slab in staged sections",
			"Waterproof deck and place fill",
		}
	case widthFt <= 200:
		b.System = "Steel girders with composite concrete deck"
		b.Steps = []string{
			"Construct center bent foundations between travel lanes",
			"Erect steel girders during night closures",
			"Place precast deck panels and composite topping",
			"Waterproof deck and place fill",
		}
	default:
		b.System = "Long-span steel trusses with intermediate bents"
		b.Steps = []string{
			"Construct multiple bent lines with drilled shafts",
			"Launch or crane-set truss spans over live traffic",
			"Place deck system and waterproofing",
		}
	}
	if partialTunnel {
		b.Steps = append(b.Steps,
			"Install ventilation and fire-life-safety systems")
	}
	return b
}
