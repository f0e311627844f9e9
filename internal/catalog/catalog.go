// Package catalog holds the static masterclass catalog: the price
// whitelist, the price-to-CRM-tag map and the installment price map.
// The catalog is built once at startup and passed by reference so the
// selection rules stay pure functions of their input.
package catalog

import "strings"

// Version identifies the catalog revision in logs and metrics.
const Version = "2025-09"

// PackLogic names the automatic discount bucket applied to a selection.
type PackLogic string

const (
	PackNone   PackLogic = "NONE"
	Pack3      PackLogic = "PACK3_15" // exactly 3 masterclasses, -15%
	PackAll    PackLogic = "ALL_30"   // full catalog, -30%
	PackSplit3 PackLogic = "SPLIT3"   // 3x installment plan, single item
)

// Live Stripe price IDs for the individual masterclasses.
var livePrices = []string{
	"price_1RyfvYBuJldFrY1HUhhozNq1", // Introduction au massage sportif
	"price_1RyfwWBuJldFrY1HvfnzyJjB", // Massage à 4 mains
	"price_1RyfwrBuJldFrY1H4sF9UUn9", // Massage adapté pour la femme enceinte
	"price_1Ryfx8BuJldFrY1H08EEYsQj", // Points gâchettes
	"price_1RyfxNBuJldFrY1HATKXKVTb", // Taping niveau 1
	"price_1RyfxZBuJldFrY1H3QPLPA86", // Massage crânio-sacré
	"price_1S0N4EBuJldFrY1HKI4Fd2Eq", // Massage dermo corporel
	"price_1Ryfy4BuJldFrY1HhpWVvLLh", // Massage viscéral
}

// CRM tags per price. Includes the retired chair-massage price so
// sessions created before the catalog change still tag correctly.
var priceTags = map[string]string{
	"price_1RyfvYBuJldFrY1HUhhozNq1": "paid: Introduction au massage sportif",
	"price_1RyfwWBuJldFrY1HvfnzyJjB": "paid: Massage à 4 mains",
	"price_1RyfwrBuJldFrY1H4sF9UUn9": "paid: Massage adapté pour la femme enceinte",
	"price_1Ryfx8BuJldFrY1H08EEYsQj": "paid: Points gâchettes",
	"price_1RyfxNBuJldFrY1HATKXKVTb": "paid: Taping niveau 1",
	"price_1RyfxZBuJldFrY1H3QPLPA86": "paid: Massage crânio-sacré",
	"price_1S0N4EBuJldFrY1HKI4Fd2Eq": "paid: Massage dermo corporel",
	"price_1RyfxpBuJldFrY1HUOo162Df": "paid: Massage sur chaise avancé",
	"price_1Ryfy4BuJldFrY1HhpWVvLLh": "paid: Massage viscéral",
}

// Catalog is the immutable set of purchasable prices and their
// associated lookup tables.
type Catalog struct {
	allowed      map[string]struct{}
	tags         map[string]string
	installments map[string]string
}

// Default builds the production catalog. The installment map comes from
// configuration because the recurring prices differ between Stripe
// environments.
func Default(installments map[string]string) *Catalog {
	return New(livePrices, priceTags, installments)
}

// New builds a catalog from explicit tables. Tests use this to substitute
// fixture data without touching handler logic.
func New(prices []string, tags map[string]string, installments map[string]string) *Catalog {
	allowed := make(map[string]struct{}, len(prices))
	for _, p := range prices {
		allowed[p] = struct{}{}
	}
	if tags == nil {
		tags = map[string]string{}
	}
	if installments == nil {
		installments = map[string]string{}
	}
	return &Catalog{allowed: allowed, tags: tags, installments: installments}
}

// Size returns the number of purchasable prices. A selection of this
// size is the full bundle.
func (c *Catalog) Size() int {
	return len(c.allowed)
}

// Contains reports whether the price ID is purchasable.
func (c *Catalog) Contains(priceID string) bool {
	_, ok := c.allowed[priceID]
	return ok
}

// Sanitize deduplicates the submitted price IDs (order preserved) and
// drops entries outside the whitelist. The rejected slice lists the
// distinct entries that failed the whitelist check; callers that enforce
// strict validation compare len(clean) against the submitted length so
// duplicates are also treated as a whole-batch failure.
func (c *Catalog) Sanitize(priceIDs []string) (clean []string, rejected []string) {
	seen := make(map[string]struct{}, len(priceIDs))
	for _, id := range priceIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if c.Contains(id) {
			clean = append(clean, id)
		} else {
			rejected = append(rejected, id)
		}
	}
	return clean, rejected
}

// PackLogicFor returns the discount bucket for a cash selection of the
// given size. The policy is intentionally binary: exactly 3 items or the
// full catalog, nothing in between.
func (c *Catalog) PackLogicFor(count int) PackLogic {
	switch {
	case count == 3:
		return Pack3
	case count == c.Size():
		return PackAll
	default:
		return PackNone
	}
}

// TagsFor maps purchased price IDs to CRM tags, deduplicated and in
// purchase order. Prices without a tag entry are skipped.
func (c *Catalog) TagsFor(priceIDs []string) []string {
	seen := make(map[string]struct{}, len(priceIDs))
	var tags []string
	for _, id := range priceIDs {
		tag, ok := c.tags[id]
		if !ok {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// InstallmentPriceFor returns the recurring price substituted for a
// one-time price under the 3x plan.
func (c *Catalog) InstallmentPriceFor(priceID string) (string, bool) {
	monthly, ok := c.installments[priceID]
	return monthly, ok
}
