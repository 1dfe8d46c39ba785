package menu

import (
	"encoding/json"
	"strings"
)

type PricingRule string

const (
	RuleSum       PricingRule = "SUM"
	RuleMaxOption PricingRule = "MAX_OPTION"
	RuleHalfSum   PricingRule = "HALF_SUM"
)

// ParsePricingRule maps unknown or empty rules to SUM.
func ParsePricingRule(value string) PricingRule {
	switch PricingRule(strings.ToUpper(strings.TrimSpace(value))) {
	case RuleMaxOption:
		return RuleMaxOption
	case RuleHalfSum:
		return RuleHalfSum
	default:
		return RuleSum
	}
}

func (r PricingRule) UsesFlavors() bool {
	return r == RuleMaxOption || r == RuleHalfSum
}

type SelectionType string

const (
	SelectionSingle SelectionType = "SINGLE"
	SelectionMulti  SelectionType = "MULTI"
)

const DefaultFlavorMarker = "sabores"

type OptionItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceDelta int64  `json:"priceCents"`
	Active     bool   `json:"active"`
}

type OptionGroup struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	SelectionType SelectionType `json:"selectionType"`
	Required      bool          `json:"required"`
	MinSelect     int           `json:"minSelect"`
	MaxSelect     int           `json:"maxSelect"`
	IsFlavor      *bool         `json:"isFlavor,omitempty"`
	Items         []OptionItem  `json:"items"`

	// Flavor is resolved by Normalize from IsFlavor or the group name.
	Flavor bool `json:"-"`
}

func (g OptionGroup) Item(id string) (OptionItem, bool) {
	for _, item := range g.Items {
		if item.ID == id {
			return item, true
		}
	}
	return OptionItem{}, false
}

type Product struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	BasePrice    int64         `json:"priceCents"`
	PricingRule  PricingRule   `json:"pricingRule"`
	OptionGroups []OptionGroup `json:"optionGroups"`
}

func (p Product) Group(id string) (OptionGroup, bool) {
	for _, group := range p.OptionGroups {
		if group.ID == id {
			return group, true
		}
	}
	return OptionGroup{}, false
}

type Category struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Products []Product `json:"products"`
}

type Store struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	IsOpen bool   `json:"isOpen"`
}

type DeliveryArea struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Fee  int64  `json:"feeCents"`
}

type PaymentConfig struct {
	AcceptedMethods []string `json:"acceptedMethods"`
}

func (c PaymentConfig) Accepts(method string) bool {
	method = strings.ToUpper(strings.TrimSpace(method))
	for _, accepted := range c.AcceptedMethods {
		if strings.ToUpper(accepted) == method {
			return true
		}
	}
	return false
}

// Snapshot is one full menu fetch. A new snapshot replaces the previous one
// entirely.
type Snapshot struct {
	Store         Store          `json:"store"`
	Categories    []Category     `json:"categories"`
	DeliveryAreas []DeliveryArea `json:"deliveryAreas"`
	Payment       PaymentConfig  `json:"payment"`

	products map[string]int
	flat     []Product
}

// Decode parses a menu payload and normalizes it with the given flavor marker.
func Decode(body []byte, flavorMarker string) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return Snapshot{}, err
	}
	snap.Normalize(flavorMarker)
	return snap, nil
}

// Normalize resolves pricing rules, selection types and flavor flags and
// builds the product index. It must be called before lookups.
func (s *Snapshot) Normalize(flavorMarker string) {
	marker := strings.TrimSpace(flavorMarker)
	if marker == "" {
		marker = DefaultFlavorMarker
	}

	s.products = make(map[string]int)
	s.flat = s.flat[:0]
	for ci := range s.Categories {
		products := s.Categories[ci].Products
		for pi := range products {
			product := &products[pi]
			product.PricingRule = ParsePricingRule(string(product.PricingRule))
			for gi := range product.OptionGroups {
				group := &product.OptionGroups[gi]
				if strings.EqualFold(string(group.SelectionType), string(SelectionMulti)) {
					group.SelectionType = SelectionMulti
				} else {
					group.SelectionType = SelectionSingle
				}
				if group.IsFlavor != nil {
					group.Flavor = *group.IsFlavor
				} else {
					group.Flavor = strings.EqualFold(strings.TrimSpace(group.Name), marker)
				}
			}
			if _, exists := s.products[product.ID]; exists {
				continue
			}
			s.products[product.ID] = len(s.flat)
			s.flat = append(s.flat, *product)
		}
	}
}

func (s *Snapshot) Product(id string) (Product, bool) {
	if s == nil || s.products == nil {
		return Product{}, false
	}
	idx, ok := s.products[id]
	if !ok {
		return Product{}, false
	}
	return s.flat[idx], true
}

func (s *Snapshot) Products() []Product {
	if s == nil {
		return nil
	}
	return s.flat
}

func (s *Snapshot) DeliveryArea(id string) (DeliveryArea, bool) {
	if s == nil {
		return DeliveryArea{}, false
	}
	for _, area := range s.DeliveryAreas {
		if area.ID == id {
			return area, true
		}
	}
	return DeliveryArea{}, false
}
