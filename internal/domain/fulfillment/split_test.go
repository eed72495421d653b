package fulfillment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestOrder builds an existing platform order with identity and totals
func newTestOrder(number string, skus ...string) *Order {
	key := "key-" + number
	id := int64(42)
	items := make([]LineItem, 0, len(skus))
	for _, sku := range skus {
		items = append(items, NewLineItem(sku))
	}
	return &Order{
		OrderNumber:    number,
		OrderKey:       &key,
		OrderID:        &id,
		Items:          items,
		AmountPaid:     decimal.NewNullDecimal(decimal.RequireFromString("59.97")),
		TaxAmount:      decimal.NewNullDecimal(decimal.RequireFromString("4.50")),
		ShippingAmount: decimal.NewNullDecimal(decimal.RequireFromString("5.00")),
	}
}

func itemSKUs(order *Order) []string {
	out := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if item.SKU == nil {
			out = append(out, "<nil>")
			continue
		}
		out = append(out, *item.SKU)
	}
	return out
}

func assertPrimary(t *testing.T, record *Order) {
	t.Helper()
	require.NotNil(t, record.OrderKey)
	require.NotNil(t, record.OrderID)
	assert.True(t, record.AmountPaid.Decimal.Equal(decimal.RequireFromString("59.97")))
	assert.True(t, record.TaxAmount.Decimal.Equal(decimal.RequireFromString("4.50")))
	assert.True(t, record.ShippingAmount.Decimal.Equal(decimal.RequireFromString("5.00")))
}

func assertStripped(t *testing.T, record *Order) {
	t.Helper()
	assert.Nil(t, record.OrderKey)
	assert.Nil(t, record.OrderID)
	assert.True(t, record.AmountPaid.Valid)
	assert.True(t, record.AmountPaid.Decimal.IsZero())
	assert.True(t, record.TaxAmount.Decimal.IsZero())
	assert.True(t, record.ShippingAmount.Decimal.IsZero())
}

// ---------------------------------------------------------------------------
// SplitGroup Tests
// ---------------------------------------------------------------------------

func TestNewSplitGroup(t *testing.T) {
	order := newTestOrder("1", "CB3-a", "routeins", "cb3-b", "Widget")
	order.Items = append(order.Items, LineItem{})

	group := NewSplitGroup(order.Items)
	assert.Equal(t, SplitGroup{FamilyCB3, FamilyRouteIns, FamilyTag("widget")}, group)
	assert.True(t, group.Contains(FamilyRouteIns))
	assert.False(t, group.Contains(FamilyCB1))
	assert.Equal(t, []string{"cb3", "routeins", "widget"}, group.Strings())
}

func TestNeedsSplit(t *testing.T) {
	tests := []struct {
		name     string
		skus     []string
		expected bool
	}{
		{"single cb1", []string{"cb1-a", "CB1-B"}, false},
		{"single cb3", []string{"cb3"}, false},
		{"single cb6", []string{"cb6-x"}, false},
		{"single essentials", []string{"Essentials-Kit"}, false},
		{"cb3 with routeins", []string{"routeins", "cb3-a"}, false},
		{"essentials with routeins", []string{"essentials", "ROUTEINS"}, false},
		{"routeins with unclassified", []string{"routeins", "widget"}, true},
		{"routeins only", []string{"routeins"}, true},
		{"unclassified only", []string{"widget-a"}, true},
		{"two core families", []string{"cb1", "cb6"}, true},
		{"core with unclassified", []string{"cb1", "mug"}, true},
		{"three families", []string{"cb1", "routeins", "essentials"}, true},
		{"no items", []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NeedsSplit(newTestOrder("1", tt.skus...)))
		})
	}
}

func TestNeedsSplit_NullSKUContributesNoTag(t *testing.T) {
	order := newTestOrder("1", "cb1-a")
	order.Items = append(order.Items, LineItem{})
	assert.False(t, NeedsSplit(order))
}

func TestPresentCoreFamilies(t *testing.T) {
	order := newTestOrder("1", "essentials-x", "routeins", "CB6-a", "cb1-b", "widget")
	assert.Equal(t, []FamilyTag{FamilyCB1, FamilyCB6, FamilyEssentials}, PresentCoreFamilies(order))

	assert.Empty(t, PresentCoreFamilies(newTestOrder("2", "widget", "routeins")))
}

// ---------------------------------------------------------------------------
// Split Tests
// ---------------------------------------------------------------------------

func TestSplit_EmptyMainOrderPromotesFirstFamily(t *testing.T) {
	order := newTestOrder("1001", "cb1-a", "cb1-b", "essentials-x")

	records := Split(order, PresentCoreFamilies(order))
	require.Len(t, records, 2)

	assert.Equal(t, "1001-cb1", records[0].OrderNumber)
	assert.Equal(t, []string{"cb1-a", "cb1-b"}, itemSKUs(records[0]))
	assertPrimary(t, records[0])
	assert.Equal(t, "key-1001", *records[0].OrderKey)

	assert.Equal(t, "1001-essentials", records[1].OrderNumber)
	assert.Equal(t, []string{"essentials-x"}, itemSKUs(records[1]))
	assertStripped(t, records[1])
}

func TestSplit_NonEmptyMainOrderKeepsIdentity(t *testing.T) {
	order := newTestOrder("2001", "cb3-a", "routeins", "cb6-b")
	order.Items = append(order.Items, LineItem{})

	records := Split(order, PresentCoreFamilies(order))
	require.Len(t, records, 3)

	assert.Equal(t, "2001", records[0].OrderNumber)
	assert.Equal(t, []string{"routeins", "<nil>"}, itemSKUs(records[0]))
	assertPrimary(t, records[0])

	assert.Equal(t, "2001-cb3", records[1].OrderNumber)
	assert.Equal(t, []string{"cb3-a"}, itemSKUs(records[1]))
	assertStripped(t, records[1])

	assert.Equal(t, "2001-cb6", records[2].OrderNumber)
	assert.Equal(t, []string{"cb6-b"}, itemSKUs(records[2]))
	assertStripped(t, records[2])
}

func TestSplit_NoFamiliesEmitsMainOrderOnly(t *testing.T) {
	order := newTestOrder("1003", "widget-a")

	records := Split(order, PresentCoreFamilies(order))
	require.Len(t, records, 1)
	assert.Equal(t, "1003", records[0].OrderNumber)
	assert.Equal(t, []string{"widget-a"}, itemSKUs(records[0]))
	assertPrimary(t, records[0])
}

func TestSplit_FamilyCopyWithoutItemsIsStillEmitted(t *testing.T) {
	order := newTestOrder("3001", "cb1-a")

	records := Split(order, []FamilyTag{FamilyCB1, FamilyCB3})
	require.Len(t, records, 2)
	assert.Equal(t, "3001-cb3", records[1].OrderNumber)
	assert.Empty(t, records[1].Items)
	assertStripped(t, records[1])
}

func TestSplit_DoesNotMutateInput(t *testing.T) {
	order := newTestOrder("4001", "cb1-a", "essentials-x", "mug")
	before := order.Clone()

	records := Split(order, PresentCoreFamilies(order))
	*records[0].Items[0].SKU = "mutated"

	assert.Equal(t, before, order)
}

func TestSplit_Invariants(t *testing.T) {
	tests := []struct {
		name string
		skus []string
	}{
		{"two families", []string{"cb1-a", "essentials-x"}},
		{"all four families", []string{"cb6", "cb1", "essentials", "cb3"}},
		{"families with insurance", []string{"cb1", "routeins", "cb3"}},
		{"families with unclassified", []string{"mug", "cb1", "cb6", "hat"}},
		{"repeated families", []string{"cb1-a", "cb3-a", "cb1-b", "cb3-b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := newTestOrder("5001", tt.skus...)
			records := Split(order, PresentCoreFamilies(order))

			withIdentity := 0
			itemCount := 0
			for _, record := range records {
				if record.HasIdentity() || !record.AmountPaid.Decimal.IsZero() {
					withIdentity++
				}
				itemCount += len(record.Items)
			}
			assert.Equal(t, 1, withIdentity, "exactly one record keeps the original identity")
			assert.Equal(t, len(order.Items), itemCount, "every item lands in exactly one record")
		})
	}
}

// ---------------------------------------------------------------------------
// Plan Tests
// ---------------------------------------------------------------------------

func TestPlan(t *testing.T) {
	t.Run("split order", func(t *testing.T) {
		plan, err := Plan(newTestOrder("1001", "cb1-a", "cb1-b", "essentials-x"))
		require.NoError(t, err)
		assert.True(t, plan.NeedsSplit)
		assert.True(t, plan.ShouldSubmit())
		assert.Equal(t, SplitGroup{FamilyCB1, FamilyEssentials}, plan.Group)
		assert.Equal(t, []FamilyTag{FamilyCB1, FamilyEssentials}, plan.Families)
		assert.Len(t, plan.Records, 2)
	})

	t.Run("safe shape", func(t *testing.T) {
		plan, err := Plan(newTestOrder("1002", "cb1-a", "routeins-b"))
		require.NoError(t, err)
		assert.False(t, plan.NeedsSplit)
		assert.False(t, plan.ShouldSubmit())
		assert.NotNil(t, plan.Families)
		assert.Empty(t, plan.Records)
	})

	t.Run("split verdict without core family", func(t *testing.T) {
		plan, err := Plan(newTestOrder("1003", "widget-a"))
		require.NoError(t, err)
		assert.True(t, plan.NeedsSplit)
		assert.Empty(t, plan.Families)
		assert.False(t, plan.ShouldSubmit())
		require.Len(t, plan.Records, 1)
		assert.Equal(t, "1003", plan.Records[0].OrderNumber)
	})

	t.Run("already split", func(t *testing.T) {
		_, err := Plan(newTestOrder("1001-cb1", "cb1-a", "essentials-x"))
		assert.ErrorIs(t, err, ErrAlreadySplit)
	})

	t.Run("missing items", func(t *testing.T) {
		_, err := Plan(&Order{OrderNumber: "1004"})
		assert.ErrorIs(t, err, ErrMalformedOrder)
	})
}

func TestSubmitResult_FailedRecords(t *testing.T) {
	result := &SubmitResult{
		HasErrors: true,
		Results: []SubmitOutcome{
			{OrderNumber: "1", Success: true},
			{OrderNumber: "1-cb1", Success: false, ErrorMessage: "bad sku"},
		},
	}
	failed := result.FailedRecords()
	require.Len(t, failed, 1)
	assert.Equal(t, "1-cb1", failed[0].OrderNumber)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrGatewayUnavailable))
	assert.True(t, IsTransient(ErrGatewayRateLimited))
	assert.False(t, IsTransient(ErrGatewayAuthFailed))
	assert.False(t, IsTransient(ErrMalformedOrder))
}
