package fulfillment

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/shopspring/decimal"
)

// SplitSeparator joins an original order number and a family tag.
// An order number containing it belongs to an order that was already split.
const SplitSeparator = "-"

// JSON keys interpreted by this package. All other keys are carried through untouched.
const (
	keyOrderNumber    = "orderNumber"
	keyOrderKey       = "orderKey"
	keyOrderID        = "orderId"
	keyItems          = "items"
	keyAmountPaid     = "amountPaid"
	keyTaxAmount      = "taxAmount"
	keyShippingAmount = "shippingAmount"
	keySKU            = "sku"
)

// ---------------------------------------------------------------------------
// LineItem
// ---------------------------------------------------------------------------

// LineItem is one line of an order. Only the SKU is interpreted; quantity,
// price and every other attribute pass through unchanged.
type LineItem struct {
	// SKU is nil when the platform sent no SKU (or null)
	SKU *string

	// skuKey is set when the payload carried a sku key, even a null one
	skuKey bool
	extra  map[string]json.RawMessage
}

// NewLineItem creates a line item with the given SKU
func NewLineItem(sku string) LineItem {
	return LineItem{SKU: &sku}
}

// Family returns the item's family tag. The second result is false when the
// item has no SKU and therefore contributes no tag.
func (i LineItem) Family() (FamilyTag, bool) {
	if i.SKU == nil {
		return "", false
	}
	return Classify(*i.SKU), true
}

// MatchesFamily reports whether the item has a SKU containing the family token
func (i LineItem) MatchesFamily(tag FamilyTag) bool {
	return i.SKU != nil && tag.Matches(*i.SKU)
}

// Attr returns a pass-through attribute as raw JSON
func (i LineItem) Attr(key string) (json.RawMessage, bool) {
	v, ok := i.extra[key]
	return v, ok
}

func (i LineItem) clone() LineItem {
	c := LineItem{skuKey: i.skuKey, extra: maps.Clone(i.extra)}
	if i.SKU != nil {
		sku := *i.SKU
		c.SKU = &sku
	}
	return c
}

// UnmarshalJSON implements json.Unmarshaler
func (i *LineItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var decoded LineItem
	_, decoded.skuKey = raw[keySKU]
	if err := decodeField(raw, keySKU, &decoded.SKU); err != nil {
		return err
	}
	delete(raw, keySKU)
	decoded.extra = raw
	*i = decoded
	return nil
}

// MarshalJSON implements json.Marshaler. A sku key that was absent on
// input stays absent.
func (i LineItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.extra)+1)
	for k, v := range i.extra {
		out[k] = v
	}
	switch {
	case i.SKU != nil:
		out[keySKU] = *i.SKU
	case i.skuKey:
		out[keySKU] = nil
	}
	return json.Marshal(out)
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// Order is an order as exchanged with the order-management platform.
type Order struct {
	// OrderNumber is the human-facing order number, unique within a notification
	OrderNumber string
	// OrderKey identifies an existing order on the platform (nil for new orders)
	OrderKey *string
	// OrderID identifies an existing order on the platform (nil for new orders)
	OrderID *int64
	// Items is nil when the payload carried no items sequence
	Items []LineItem
	// AmountPaid is the total paid by the customer
	AmountPaid decimal.NullDecimal
	// TaxAmount is the total tax
	TaxAmount decimal.NullDecimal
	// ShippingAmount is the shipping charge
	ShippingAmount decimal.NullDecimal

	extra map[string]json.RawMessage
}

// Validate checks the preconditions of classification and splitting
func (o *Order) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: nil order", ErrMalformedOrder)
	}
	if o.OrderNumber == "" {
		return fmt.Errorf("%w: missing orderNumber", ErrMalformedOrder)
	}
	if o.Items == nil {
		return fmt.Errorf("%w: order %s has no items sequence", ErrMalformedOrder, o.OrderNumber)
	}
	return nil
}

// IsAlreadySplit returns true if the order number carries a split suffix
func (o *Order) IsAlreadySplit() bool {
	return strings.Contains(o.OrderNumber, SplitSeparator)
}

// HasIdentity returns true if the order still carries a platform identity
func (o *Order) HasIdentity() bool {
	return o.OrderKey != nil || o.OrderID != nil
}

// Attr returns a pass-through attribute as raw JSON
func (o *Order) Attr(key string) (json.RawMessage, bool) {
	v, ok := o.extra[key]
	return v, ok
}

// Clone returns a deep copy; the copy shares no mutable state with o.
func (o *Order) Clone() *Order {
	c := *o
	c.extra = maps.Clone(o.extra)
	if o.OrderKey != nil {
		key := *o.OrderKey
		c.OrderKey = &key
	}
	if o.OrderID != nil {
		id := *o.OrderID
		c.OrderID = &id
	}
	if o.Items != nil {
		c.Items = make([]LineItem, len(o.Items))
		for i, item := range o.Items {
			c.Items[i] = item.clone()
		}
	}
	return &c
}

// stripIdentity turns the order into a new-order record: no platform identity
// and zeroed financial totals.
func (o *Order) stripIdentity() {
	o.OrderKey = nil
	o.OrderID = nil
	o.AmountPaid = decimal.NewNullDecimal(decimal.Zero)
	o.TaxAmount = decimal.NewNullDecimal(decimal.Zero)
	o.ShippingAmount = decimal.NewNullDecimal(decimal.Zero)
}

// UnmarshalJSON implements json.Unmarshaler
func (o *Order) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var decoded Order
	fields := []struct {
		key string
		dst any
	}{
		{keyOrderNumber, &decoded.OrderNumber},
		{keyOrderKey, &decoded.OrderKey},
		{keyOrderID, &decoded.OrderID},
		{keyItems, &decoded.Items},
		{keyAmountPaid, &decoded.AmountPaid},
		{keyTaxAmount, &decoded.TaxAmount},
		{keyShippingAmount, &decoded.ShippingAmount},
	}
	for _, f := range fields {
		if err := decodeField(raw, f.key, f.dst); err != nil {
			return err
		}
		delete(raw, f.key)
	}

	decoded.extra = raw
	*o = decoded
	return nil
}

// MarshalJSON implements json.Marshaler
func (o Order) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.extra)+7)
	for k, v := range o.extra {
		out[k] = v
	}
	out[keyOrderNumber] = o.OrderNumber
	if o.OrderKey != nil {
		out[keyOrderKey] = *o.OrderKey
	}
	if o.OrderID != nil {
		out[keyOrderID] = *o.OrderID
	}
	out[keyItems] = o.Items
	putAmount(out, keyAmountPaid, o.AmountPaid)
	putAmount(out, keyTaxAmount, o.TaxAmount)
	putAmount(out, keyShippingAmount, o.ShippingAmount)
	return json.Marshal(out)
}

// putAmount writes a valid amount as a bare JSON number
func putAmount(out map[string]any, key string, amount decimal.NullDecimal) {
	if amount.Valid {
		out[key] = json.Number(amount.Decimal.String())
	}
}

// decodeField decodes raw[key] into dst when present and not null
func decodeField(raw map[string]json.RawMessage, key string, dst any) error {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("%w: field %s: %v", ErrMalformedOrder, key, err)
	}
	return nil
}
