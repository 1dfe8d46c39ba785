package order

import (
	"encoding/json"
	"strconv"
	"strings"

	"public-order-engine/internal/selection"
)

type Type string

const (
	TypeDelivery Type = "DELIVERY"
	TypeTakeaway Type = "TAKEAWAY"
	TypeDineIn   Type = "DINE_IN"
)

func ParseType(value string) (Type, bool) {
	switch Type(strings.ToUpper(strings.TrimSpace(value))) {
	case TypeDelivery:
		return TypeDelivery, true
	case TypeTakeaway:
		return TypeTakeaway, true
	case TypeDineIn:
		return TypeDineIn, true
	}
	return "", false
}

const PaymentCash = "CASH"

type ItemPayload struct {
	ProductID string                `json:"productId"`
	Quantity  int                   `json:"quantity"`
	Notes     *string               `json:"notes,omitempty"`
	Options   []selection.Selection `json:"options,omitempty"`
}

// Payload is the body of POST /public/{slug}/orders. ClientOrderID is the
// idempotency key and is identical across retries.
type Payload struct {
	ClientOrderID  string        `json:"clientOrderId"`
	CustomerName   *string       `json:"customerName,omitempty"`
	CustomerPhone  *string       `json:"customerPhone,omitempty"`
	OrderType      Type          `json:"orderType"`
	Notes          *string       `json:"notes,omitempty"`
	PaymentMethod  *string       `json:"paymentMethod,omitempty"`
	ChangeForCents *int64        `json:"changeForCents,omitempty"`
	Items          []ItemPayload `json:"items"`
	DeliveryAreaID *string       `json:"deliveryAreaId,omitempty"`
	AddressLine    *string       `json:"addressLine,omitempty"`
	AddressRef     *string       `json:"addressRef,omitempty"`
	TableID        *string       `json:"tableId,omitempty"`
}

// ServerOrder is the accepted order as returned by the upstream API.
type ServerOrder struct {
	ID           FlexibleID `json:"id"`
	Number       FlexibleID `json:"number,omitempty"`
	ShortCode    string     `json:"shortCode,omitempty"`
	ReceiptToken string     `json:"receiptToken,omitempty"`
}

// FlexibleID accepts both JSON strings and numbers.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*id = FlexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = FlexibleID(n.String())
	return nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
