package cart

import (
	"encoding/json"
	"fmt"
	"testing"

	"public-order-engine/internal/menu"
	"public-order-engine/internal/order"
	"public-order-engine/internal/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCart() *Cart {
	n := 0
	c := New()
	c.newID = func() string {
		n++
		return fmt.Sprintf("line-%d", n)
	}
	return c
}

func burgerSnapshot(burgerPrice, cheesePrice int64, withFries bool) *menu.Snapshot {
	products := []menu.Product{
		{
			ID: "burger", Name: "Burger", BasePrice: burgerPrice, PricingRule: menu.RuleSum,
			OptionGroups: []menu.OptionGroup{
				{
					ID: "extras", Name: "Extras", SelectionType: menu.SelectionMulti, MaxSelect: 2,
					Items: []menu.OptionItem{
						{ID: "cheese", Name: "Cheese", PriceDelta: cheesePrice, Active: true},
						{ID: "bacon", Name: "Bacon", PriceDelta: 300, Active: true},
					},
				},
			},
		},
		{ID: "soda", Name: "Soda", BasePrice: 500, PricingRule: menu.RuleSum},
	}
	if withFries {
		products = append(products, menu.Product{ID: "fries", Name: "Fries", BasePrice: 700})
	}
	snap := &menu.Snapshot{
		Store:      menu.Store{Slug: "burgers", IsOpen: true},
		Categories: []menu.Category{{ID: "main", Name: "Main", Products: products}},
	}
	snap.Normalize("")
	return snap
}

func TestAddPricesLine(t *testing.T) {
	c := newTestCart()
	snap := burgerSnapshot(1000, 200, false)

	line, err := c.Add(snap, "burger", 2, " no pickles ", []selection.Selection{{GroupID: "extras", ItemIDs: []string{"cheese"}}})
	require.Nil(t, err)
	assert.Equal(t, "line-1", line.ID)
	assert.Equal(t, int64(1200), line.UnitPrice)
	assert.Equal(t, "no pickles", line.Notes)
	assert.False(t, line.Unavailable)
	assert.Equal(t, int64(2400), c.Subtotal())
}

func TestAddRejectsInvalidConfiguration(t *testing.T) {
	c := newTestCart()
	snap := burgerSnapshot(1000, 200, false)

	_, err := c.Add(snap, "burger", 1, "", []selection.Selection{{GroupID: "extras", ItemIDs: []string{"cheese", "bacon", "cheese"}}})
	require.NotNil(t, err)
	assert.Equal(t, order.ErrValidation, err.Code)

	_, err = c.Add(snap, "pizza", 1, "", nil)
	require.NotNil(t, err)
	assert.Equal(t, order.ErrProductNotFound, err.Code)

	_, err = c.Add(snap, "soda", 0, "", nil)
	require.NotNil(t, err)

	_, err = c.Add(nil, "soda", 1, "", nil)
	require.NotNil(t, err)
	assert.Equal(t, order.ErrMenuNotLoaded, err.Code)
	assert.Equal(t, 0, c.Len())
}

func TestReconcileMarksRemovedProductUnavailable(t *testing.T) {
	c := newTestCart()
	_, err := c.Add(burgerSnapshot(1000, 200, true), "fries", 3, "extra salt", nil)
	require.Nil(t, err)

	changed := c.Reconcile(burgerSnapshot(1000, 200, false))
	require.True(t, changed)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Unavailable)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, "extra salt", lines[0].Notes)
	assert.Equal(t, "Fries", lines[0].Name)
	assert.Equal(t, 1, c.Summary().Unavailable)
	assert.Equal(t, int64(0), c.Subtotal())

	assert.Equal(t, 1, c.RemoveUnavailable())
	assert.Equal(t, 0, c.Len())
}

func TestReconcilePropagatesPriceChanges(t *testing.T) {
	c := newTestCart()
	line, err := c.Add(burgerSnapshot(1000, 200, false), "burger", 1, "", []selection.Selection{{GroupID: "extras", ItemIDs: []string{"cheese"}}})
	require.Nil(t, err)

	assert.True(t, c.Reconcile(burgerSnapshot(1100, 250, false)))
	got, ok := c.Line(line.ID)
	require.True(t, ok)
	assert.Equal(t, int64(1350), got.UnitPrice)
	assert.Equal(t, line.ID, got.ID)
}

func TestReconcileIsIdempotent(t *testing.T) {
	c := newTestCart()
	_, _ = c.Add(burgerSnapshot(1000, 200, true), "burger", 1, "", []selection.Selection{{GroupID: "extras", ItemIDs: []string{"bacon"}}})
	_, _ = c.Add(burgerSnapshot(1000, 200, true), "fries", 1, "", nil)

	next := burgerSnapshot(900, 200, false)
	require.True(t, c.Reconcile(next))
	first := c.Lines()

	assert.False(t, c.Reconcile(next))
	assert.Equal(t, first, c.Lines())
}

func TestReconcileFlagsRemovedOption(t *testing.T) {
	c := newTestCart()
	_, err := c.Add(burgerSnapshot(1000, 200, false), "burger", 1, "", []selection.Selection{{GroupID: "extras", ItemIDs: []string{"bacon"}}})
	require.Nil(t, err)

	snap := burgerSnapshot(1000, 200, false)
	snap.Categories[0].Products[0].OptionGroups[0].Items = snap.Categories[0].Products[0].OptionGroups[0].Items[:1]
	snap.Normalize("")

	c.Reconcile(snap)
	assert.True(t, c.Lines()[0].Unavailable)

	// The line comes back once the option is offered again.
	c.Reconcile(burgerSnapshot(1000, 200, false))
	assert.False(t, c.Lines()[0].Unavailable)
	assert.Equal(t, int64(1300), c.Lines()[0].UnitPrice)
}

func TestReconcileFlagsProductThatLostItsGroups(t *testing.T) {
	c := newTestCart()
	_, err := c.Add(burgerSnapshot(1000, 200, false), "burger", 1, "", []selection.Selection{{GroupID: "extras", ItemIDs: []string{"bacon"}}})
	require.Nil(t, err)

	snap := burgerSnapshot(1000, 200, false)
	snap.Categories[0].Products[0].OptionGroups = nil
	snap.Normalize("")

	c.Reconcile(snap)
	assert.True(t, c.Lines()[0].Unavailable)
	assert.Equal(t, ReasonNoOptions, c.Lines()[0].Reason)
}

func TestSetQuantityZeroRemoves(t *testing.T) {
	c := newTestCart()
	line, _ := c.Add(burgerSnapshot(1000, 200, false), "soda", 1, "", nil)

	require.Nil(t, c.SetQuantity(line.ID, 4))
	assert.Equal(t, int64(2000), c.Subtotal())

	require.Nil(t, c.SetQuantity(line.ID, 0))
	assert.Equal(t, 0, c.Len())
	assert.NotNil(t, c.SetQuantity(line.ID, 1))
}

func TestToggleOnLine(t *testing.T) {
	c := newTestCart()
	snap := burgerSnapshot(1000, 200, false)
	line, _ := c.Add(snap, "burger", 1, "", nil)

	msg, err := c.Toggle(snap, line.ID, "extras", "cheese")
	require.Nil(t, err)
	require.Empty(t, msg)
	msg, _ = c.Toggle(snap, line.ID, "extras", "bacon")
	require.Empty(t, msg)

	got, _ := c.Line(line.ID)
	assert.Equal(t, int64(1500), got.UnitPrice)

	msg, _ = c.Toggle(snap, line.ID, "extras", "cheese")
	assert.Empty(t, msg)
	got, _ = c.Line(line.ID)
	assert.Equal(t, int64(1300), got.UnitPrice)
}

func TestItemsRoundTrip(t *testing.T) {
	c := newTestCart()
	snap := burgerSnapshot(1000, 200, false)
	sel := []selection.Selection{{GroupID: "extras", ItemIDs: []string{"bacon", "cheese"}}}
	_, err := c.Add(snap, "burger", 2, "well done", sel)
	require.Nil(t, err)
	_, err = c.Add(snap, "soda", 1, "", nil)
	require.Nil(t, err)

	payload := order.Checkout{OrderType: "TAKEAWAY"}.Build("client-1", c.Items())
	body, jerr := json.Marshal(payload)
	require.NoError(t, jerr)

	var received struct {
		ClientOrderID string `json:"clientOrderId"`
		Items         []struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
			Notes     string `json:"notes"`
			Options   []struct {
				GroupID string   `json:"groupId"`
				ItemIDs []string `json:"itemIds"`
			} `json:"options"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body, &received))

	assert.Equal(t, "client-1", received.ClientOrderID)
	require.Len(t, received.Items, 2)
	assert.Equal(t, "burger", received.Items[0].ProductID)
	assert.Equal(t, "well done", received.Items[0].Notes)
	require.Len(t, received.Items[0].Options, 1)
	assert.Equal(t, "extras", received.Items[0].Options[0].GroupID)
	assert.Equal(t, []string{"bacon", "cheese"}, received.Items[0].Options[0].ItemIDs)
	assert.Empty(t, received.Items[1].Options)
}

func TestRestoreDerivesAgainstSnapshot(t *testing.T) {
	saved := []Line{
		{ID: "a", ProductID: "soda", Quantity: 2},
		{ID: "b", ProductID: "ghost", Quantity: 1, Name: "Ghost"},
		{ID: "", ProductID: "soda", Quantity: 1},
		{ID: "c", ProductID: "soda", Quantity: 0},
	}
	c := Restore(saved, burgerSnapshot(1000, 200, false))

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, int64(500), lines[0].UnitPrice)
	assert.True(t, lines[1].Unavailable)
	assert.Equal(t, "Ghost", lines[1].Name)
}

func TestToggleDeselectsWithdrawnOption(t *testing.T) {
	c := newTestCart()
	line, err := c.Add(burgerSnapshot(1000, 200, false), "burger", 1, "", []selection.Selection{{GroupID: "extras", ItemIDs: []string{"cheese", "bacon"}}})
	require.Nil(t, err)

	snap := burgerSnapshot(1000, 200, false)
	snap.Categories[0].Products[0].OptionGroups[0].Items[0].Active = false
	snap.Normalize("")
	c.Reconcile(snap)
	got, _ := c.Line(line.ID)
	require.True(t, got.Unavailable)

	msg, oerr := c.Toggle(snap, line.ID, "extras", "cheese")
	require.Nil(t, oerr)
	assert.Empty(t, msg)

	got, _ = c.Line(line.ID)
	assert.False(t, got.Unavailable)
	assert.Equal(t, []selection.Selection{{GroupID: "extras", ItemIDs: []string{"bacon"}}}, got.Selections)
	assert.Equal(t, int64(1300), got.UnitPrice)

	// Once deselected it cannot be picked again.
	msg, _ = c.Toggle(snap, line.ID, "extras", "cheese")
	assert.Equal(t, "This option is no longer available", msg)
}
