package pricing

import "public-order-engine/internal/menu"

// SelectedGroup is one option group with the deltas of its selected items.
type SelectedGroup struct {
	GroupID string
	Flavor  bool
	Deltas  []int64
}

type Result struct {
	UnitPrice          int64  `json:"unitPrice"`
	FlavorsCount       int    `json:"flavorsCount"`
	HasFlavorSelection bool   `json:"hasFlavorSelection"`
	Valid              bool   `json:"valid"`
	Reason             string `json:"reason,omitempty"`
}

const (
	ReasonNoFlavor       = "at least one flavor must be selected"
	ReasonFlavorCountBad = "choose one or two flavors"
)

// Evaluate computes the unit price for a product configuration. It has no
// side effects and does not depend on group order.
func Evaluate(rule menu.PricingRule, basePrice int64, groups []SelectedGroup) Result {
	switch rule {
	case menu.RuleMaxOption, menu.RuleHalfSum:
		return evaluateFlavors(rule, groups)
	default:
		total := basePrice
		count := 0
		for _, group := range groups {
			for _, delta := range group.Deltas {
				total += delta
			}
			if group.Flavor {
				count += len(group.Deltas)
			}
		}
		return Result{UnitPrice: total, FlavorsCount: count, HasFlavorSelection: count > 0, Valid: true}
	}
}

func evaluateFlavors(rule menu.PricingRule, groups []SelectedGroup) Result {
	var extras int64
	flavors := make([]int64, 0, 2)
	for _, group := range groups {
		if group.Flavor {
			flavors = append(flavors, group.Deltas...)
			continue
		}
		for _, delta := range group.Deltas {
			extras += delta
		}
	}

	res := Result{FlavorsCount: len(flavors), HasFlavorSelection: len(flavors) > 0}

	var contribution int64
	if rule == menu.RuleMaxOption {
		if len(flavors) == 0 {
			res.Reason = ReasonNoFlavor
		} else {
			contribution = flavors[0]
			for _, delta := range flavors[1:] {
				if delta > contribution {
					contribution = delta
				}
			}
			res.Valid = true
		}
	} else {
		switch len(flavors) {
		case 1:
			contribution = flavors[0]
			res.Valid = true
		case 2:
			contribution = floorHalf(flavors[0]) + floorHalf(flavors[1])
			res.Valid = true
		default:
			res.Reason = ReasonFlavorCountBad
		}
	}

	res.UnitPrice = contribution + extras
	return res
}

func floorHalf(v int64) int64 {
	if v >= 0 || v%2 == 0 {
		return v / 2
	}
	return v/2 - 1
}
