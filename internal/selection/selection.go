package selection

import (
	"fmt"

	"public-order-engine/internal/menu"
	"public-order-engine/internal/pricing"
)

// Unbounded is the effective max of a MULTI group with maxSelect 0.
const Unbounded = -1

type Selection struct {
	GroupID string   `json:"groupId"`
	ItemIDs []string `json:"itemIds"`
}

type GroupResult struct {
	GroupID  string `json:"groupId"`
	Selected int    `json:"selected"`
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Valid    bool   `json:"valid"`
}

type Result struct {
	Valid   bool           `json:"valid"`
	Groups  []GroupResult  `json:"groups"`
	Pricing pricing.Result `json:"pricing"`
	Reason  string         `json:"reason,omitempty"`
}

// Bounds returns the effective selection bounds of a group.
func Bounds(group menu.OptionGroup) (min int, max int) {
	min = group.MinSelect
	if min < 0 {
		min = 0
	}
	if group.Required && min < 1 {
		min = 1
	}

	if group.SelectionType == menu.SelectionSingle {
		if min > 1 {
			min = 1
		}
		return min, 1
	}
	if group.MaxSelect > 0 {
		return min, group.MaxSelect
	}
	return min, Unbounded
}

func withinBounds(count, min, max int) bool {
	if count < min {
		return false
	}
	return max == Unbounded || count <= max
}

// Validate checks a set of selections against the current product definition
// and prices it. It never fails; problems are reported through Valid and
// Reason.
func Validate(product menu.Product, selections []Selection) Result {
	res := Result{Valid: true, Groups: make([]GroupResult, 0, len(product.OptionGroups))}

	byGroup := make(map[string][]string, len(selections))
	for _, sel := range selections {
		group, ok := product.Group(sel.GroupID)
		if !ok {
			res.invalidate(fmt.Sprintf("option group %s is no longer offered", sel.GroupID))
			continue
		}
		if _, dup := byGroup[sel.GroupID]; dup {
			res.invalidate(fmt.Sprintf("option group %s selected twice", group.Name))
			continue
		}
		seen := make(map[string]struct{}, len(sel.ItemIDs))
		for _, itemID := range sel.ItemIDs {
			item, ok := group.Item(itemID)
			if !ok || !item.Active {
				res.invalidate(fmt.Sprintf("an option in %s is no longer available", group.Name))
				continue
			}
			if _, dup := seen[itemID]; dup {
				res.invalidate(fmt.Sprintf("option %s selected twice", item.Name))
				continue
			}
			seen[itemID] = struct{}{}
		}
		byGroup[sel.GroupID] = sel.ItemIDs
	}

	for _, group := range product.OptionGroups {
		min, max := Bounds(group)
		count := len(byGroup[group.ID])
		gr := GroupResult{GroupID: group.ID, Selected: count, Min: min, Max: max, Valid: withinBounds(count, min, max)}
		if !gr.Valid {
			res.invalidate(boundsMessage(group.Name, min, max))
		}
		res.Groups = append(res.Groups, gr)
	}

	res.Pricing = pricing.Evaluate(product.PricingRule, product.BasePrice, Resolve(product, selections))
	if product.PricingRule.UsesFlavors() && !res.Pricing.Valid {
		res.invalidate(res.Pricing.Reason)
	}
	return res
}

func (r *Result) invalidate(reason string) {
	if r.Valid {
		r.Reason = reason
	}
	r.Valid = false
}

// Resolve maps selections to priced groups, skipping anything the product no
// longer defines.
func Resolve(product menu.Product, selections []Selection) []pricing.SelectedGroup {
	out := make([]pricing.SelectedGroup, 0, len(selections))
	for _, sel := range selections {
		group, ok := product.Group(sel.GroupID)
		if !ok {
			continue
		}
		sg := pricing.SelectedGroup{GroupID: group.ID, Flavor: group.Flavor, Deltas: make([]int64, 0, len(sel.ItemIDs))}
		for _, itemID := range sel.ItemIDs {
			item, ok := group.Item(itemID)
			if !ok || !item.Active {
				continue
			}
			sg.Deltas = append(sg.Deltas, item.PriceDelta)
		}
		out = append(out, sg)
	}
	return out
}

func boundsMessage(groupName string, min, max int) string {
	switch {
	case max == Unbounded:
		return fmt.Sprintf("Choose at least %d in %s", min, groupName)
	case min == max:
		return fmt.Sprintf("Choose %d in %s", min, groupName)
	case min == 0:
		return fmt.Sprintf("Choose at most %d in %s", max, groupName)
	default:
		return fmt.Sprintf("Choose between %d and %d in %s", min, max, groupName)
	}
}
