package selection

import (
	"fmt"

	"public-order-engine/internal/menu"
)

// Toggle flips itemID within group and returns the new selection list. When
// the change is refused, the original selections are returned together with a
// message for the customer.
func Toggle(product menu.Product, selections []Selection, groupID, itemID string) ([]Selection, string) {
	current := []string(nil)
	idx := -1
	for i, sel := range selections {
		if sel.GroupID == groupID {
			current = sel.ItemIDs
			idx = i
			break
		}
	}

	group, groupOK := product.Group(groupID)
	item, itemOK := group.Item(itemID)

	var next []string
	switch {
	case !groupOK || !itemOK || !item.Active:
		// A withdrawn option can still be deselected so the line can be fixed.
		if !contains(current, itemID) {
			return selections, "This option is no longer available"
		}
		next = without(current, itemID)
	case group.SelectionType == menu.SelectionSingle:
		if contains(current, itemID) && !group.Required {
			next = []string{}
		} else {
			next = []string{itemID}
		}
	case contains(current, itemID):
		next = without(current, itemID)
	default:
		_, max := Bounds(group)
		if max != Unbounded && len(current) >= max {
			return selections, fmt.Sprintf("Choose at most %d options in %s", max, group.Name)
		}
		next = append(append(make([]string, 0, len(current)+1), current...), itemID)
	}

	out := make([]Selection, 0, len(selections)+1)
	for i, sel := range selections {
		if i == idx {
			if len(next) > 0 || groupOK {
				out = append(out, Selection{GroupID: groupID, ItemIDs: next})
			}
			continue
		}
		out = append(out, Selection{GroupID: sel.GroupID, ItemIDs: append([]string(nil), sel.ItemIDs...)})
	}
	if idx < 0 {
		out = append(out, Selection{GroupID: groupID, ItemIDs: next})
	}
	return out, ""
}

// Clone deep-copies a selection list.
func Clone(selections []Selection) []Selection {
	if selections == nil {
		return nil
	}
	out := make([]Selection, len(selections))
	for i, sel := range selections {
		out[i] = Selection{GroupID: sel.GroupID, ItemIDs: append([]string(nil), sel.ItemIDs...)}
	}
	return out
}

// Equal reports whether two selection lists are identical, including order.
func Equal(a, b []Selection) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].GroupID != b[i].GroupID || len(a[i].ItemIDs) != len(b[i].ItemIDs) {
			return false
		}
		for j := range a[i].ItemIDs {
			if a[i].ItemIDs[j] != b[i].ItemIDs[j] {
				return false
			}
		}
	}
	return true
}

func without(values []string, target string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
