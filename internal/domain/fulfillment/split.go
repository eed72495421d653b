package fulfillment

import "fmt"

// ---------------------------------------------------------------------------
// SplitGroup
// ---------------------------------------------------------------------------

// SplitGroup is the set of distinct family tags on an order, in order of
// first appearance.
type SplitGroup []FamilyTag

// NewSplitGroup classifies items and deduplicates their tags.
// Items without a SKU contribute nothing.
func NewSplitGroup(items []LineItem) SplitGroup {
	group := make(SplitGroup, 0, len(items))
	seen := make(map[FamilyTag]struct{}, len(items))
	for _, item := range items {
		tag, ok := item.Family()
		if !ok {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		group = append(group, tag)
	}
	return group
}

// Contains returns true if tag is a member of the group
func (g SplitGroup) Contains(tag FamilyTag) bool {
	for _, t := range g {
		if t == tag {
			return true
		}
	}
	return false
}

// Strings returns the tags as plain strings
func (g SplitGroup) Strings() []string {
	out := make([]string, len(g))
	for i, t := range g {
		out[i] = string(t)
	}
	return out
}

// RequiresSplit applies the safe-shape whitelist. Only a lone core family, or
// a core family accompanied by routeins, ships as one order.
func (g SplitGroup) RequiresSplit() bool {
	switch len(g) {
	case 1:
		return !g[0].IsCore()
	case 2:
		first, second := g[0], g[1]
		safe := (first.IsRouteIns() && second.IsCore()) || (second.IsRouteIns() && first.IsCore())
		return !safe
	default:
		return true
	}
}

// ---------------------------------------------------------------------------
// Decision Engine
// ---------------------------------------------------------------------------

// NeedsSplit decides whether the order must be partitioned.
// Callers must not pass orders that are already split.
func NeedsSplit(order *Order) bool {
	return NewSplitGroup(order.Items).RequiresSplit()
}

// PresentCoreFamilies returns the core families with at least one matching
// item, scanned in CoreFamilies order.
func PresentCoreFamilies(order *Order) []FamilyTag {
	present := make([]FamilyTag, 0, len(CoreFamilies))
	for _, tag := range CoreFamilies {
		for _, item := range order.Items {
			if item.MatchesFamily(tag) {
				present = append(present, tag)
				break
			}
		}
	}
	return present
}

// ---------------------------------------------------------------------------
// Splitter
// ---------------------------------------------------------------------------

// Split builds the records that replace order on the platform.
//
// The main order keeps every item outside the core families and is emitted
// first when non-empty, keeping the original order number. Each tag then gets
// a copy named <orderNumber>-<tag> holding the items of that family. Exactly
// one record retains the original identity and financial totals: the main
// order when it is emitted, otherwise the first family copy.
func Split(order *Order, familyTags []FamilyTag) []*Order {
	records := make([]*Order, 0, len(familyTags)+1)

	main := order.Clone()
	main.Items = filterItems(order.Items, func(item LineItem) bool {
		return item.SKU == nil || !MatchesAnyCore(*item.SKU)
	})
	mainEmitted := len(main.Items) > 0
	if mainEmitted {
		records = append(records, main)
	}

	primaryIndex := -1
	if !mainEmitted {
		primaryIndex = 0
	}

	for i, tag := range familyTags {
		copied := order.Clone()
		copied.OrderNumber = fmt.Sprintf("%s%s%s", order.OrderNumber, SplitSeparator, tag)
		copied.Items = filterItems(order.Items, func(item LineItem) bool {
			return item.MatchesFamily(tag)
		})
		if i != primaryIndex {
			copied.stripIdentity()
		}
		records = append(records, copied)
	}

	return records
}

// filterItems returns fresh copies of the items accepted by keep
func filterItems(items []LineItem, keep func(LineItem) bool) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item.clone())
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// SplitPlan
// ---------------------------------------------------------------------------

// SplitPlan is the full outcome of evaluating one order
type SplitPlan struct {
	// OrderNumber is the evaluated order's number
	OrderNumber string
	// Group is the distinct family set of the order
	Group SplitGroup
	// NeedsSplit is the decision engine's verdict
	NeedsSplit bool
	// Families are the core families the order is split into
	Families []FamilyTag
	// Records are the orders to submit; empty when no split is needed
	Records []*Order
}

// ShouldSubmit returns true if the plan produced family records worth sending.
// A split verdict without any core family only reproduces the original order.
func (p *SplitPlan) ShouldSubmit() bool {
	return p.NeedsSplit && len(p.Families) > 0
}

// Plan validates the order and evaluates it end to end.
func Plan(order *Order) (*SplitPlan, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if order.IsAlreadySplit() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySplit, order.OrderNumber)
	}

	plan := &SplitPlan{
		OrderNumber: order.OrderNumber,
		Group:       NewSplitGroup(order.Items),
		Records:     make([]*Order, 0),
	}
	plan.NeedsSplit = plan.Group.RequiresSplit()
	if !plan.NeedsSplit {
		plan.Families = make([]FamilyTag, 0)
		return plan, nil
	}

	plan.Families = PresentCoreFamilies(order)
	plan.Records = Split(order, plan.Families)
	return plan, nil
}
