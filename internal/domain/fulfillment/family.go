package fulfillment

import "strings"

// ---------------------------------------------------------------------------
// FamilyTag
// ---------------------------------------------------------------------------

// FamilyTag is the canonical product family of a line item.
// Besides the known constants, any lowercased SKU that matches no known token
// is itself a (singleton) family tag.
type FamilyTag string

const (
	// FamilyCB1 is the CB1 product family
	FamilyCB1 FamilyTag = "cb1"
	// FamilyCB3 is the CB3 product family
	FamilyCB3 FamilyTag = "cb3"
	// FamilyCB6 is the CB6 product family
	FamilyCB6 FamilyTag = "cb6"
	// FamilyEssentials is the essentials product family
	FamilyEssentials FamilyTag = "essentials"
	// FamilyRouteIns is the shipping-insurance line; it never causes a split on its own
	FamilyRouteIns FamilyTag = "routeins"
)

// CoreFamilies lists the splittable families in classification priority order.
// Both the classifier and the main-order filter read this list.
var CoreFamilies = []FamilyTag{FamilyCB1, FamilyCB3, FamilyCB6, FamilyEssentials}

// classificationOrder is CoreFamilies followed by the auxiliary tags.
// The order is load-bearing for SKUs that contain several tokens.
var classificationOrder = append(append([]FamilyTag{}, CoreFamilies...), FamilyRouteIns)

// String returns the string representation of FamilyTag
func (f FamilyTag) String() string {
	return string(f)
}

// IsCore returns true if the tag is one of the splittable core families
func (f FamilyTag) IsCore() bool {
	for _, core := range CoreFamilies {
		if f == core {
			return true
		}
	}
	return false
}

// IsRouteIns returns true for the shipping-insurance tag
func (f FamilyTag) IsRouteIns() bool {
	return f == FamilyRouteIns
}

// Matches reports whether sku contains this family's token, ignoring case.
func (f FamilyTag) Matches(sku string) bool {
	return strings.Contains(strings.ToLower(sku), string(f))
}

// Classify maps a raw SKU to its family tag. The first token found in
// classification order wins; a SKU matching no token is its own family.
func Classify(sku string) FamilyTag {
	lower := strings.ToLower(sku)
	for _, tag := range classificationOrder {
		if strings.Contains(lower, string(tag)) {
			return tag
		}
	}
	return FamilyTag(lower)
}

// MatchesAnyCore reports whether sku contains any core family token.
func MatchesAnyCore(sku string) bool {
	for _, core := range CoreFamilies {
		if core.Matches(sku) {
			return true
		}
	}
	return false
}
