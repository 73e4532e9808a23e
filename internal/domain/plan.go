package domain

// Cadence is the billing cycle of a plan.
type Cadence string

const (
	CadenceMonthly Cadence = "monthly"
	CadenceAnnual  Cadence = "annual"
)

// Caps holds the usage limits granted by a plan, add-on purchase, or
// entitlement snapshot. A nil field means this source imposes no cap.
type Caps struct {
	ActiveUsers      *int64 `json:"active_users"`
	Seats            *int64 `json:"seats"`
	StorageMB        *int64 `json:"storage_mb"`
	Sites            *int64 `json:"sites"`
	MessagesPerMonth *int64 `json:"messages_per_month"`
}

// Cap returns a pointer to v, for building Caps literals.
func Cap(v int64) *int64 { return &v }

// PlanDefinition describes a sellable plan: its tier, billing cadence,
// and the caps included in the base price.
type PlanDefinition struct {
	Code      string
	Tier      string
	Cadence   Cadence
	SelfServe bool
	Caps      Caps
}

// catalogue maps plan code to definition. Plan codes are stable
// identifiers shared with the payment provider's price metadata;
// changing caps here only affects future checkouts, never existing
// entitlement snapshots.
var catalogue = map[string]PlanDefinition{
	"FREE": {
		Code: "FREE", Tier: "free", Cadence: CadenceMonthly, SelfServe: true,
		Caps: Caps{ActiveUsers: Cap(15), Seats: Cap(2), StorageMB: Cap(1024), Sites: Cap(1), MessagesPerMonth: Cap(100)},
	},
	"STARTER_MONTHLY": {
		Code: "STARTER_MONTHLY", Tier: "starter", Cadence: CadenceMonthly, SelfServe: true,
		Caps: Caps{ActiveUsers: Cap(50), Seats: Cap(5), StorageMB: Cap(10240), Sites: Cap(1), MessagesPerMonth: Cap(500)},
	},
	"STARTER_ANNUAL": {
		Code: "STARTER_ANNUAL", Tier: "starter", Cadence: CadenceAnnual, SelfServe: true,
		Caps: Caps{ActiveUsers: Cap(50), Seats: Cap(5), StorageMB: Cap(10240), Sites: Cap(1), MessagesPerMonth: Cap(500)},
	},
	"GROWTH_MONTHLY": {
		Code: "GROWTH_MONTHLY", Tier: "growth", Cadence: CadenceMonthly, SelfServe: true,
		Caps: Caps{ActiveUsers: Cap(200), Seats: Cap(20), StorageMB: Cap(51200), Sites: Cap(3), MessagesPerMonth: Cap(2000)},
	},
	"GROWTH_ANNUAL": {
		Code: "GROWTH_ANNUAL", Tier: "growth", Cadence: CadenceAnnual, SelfServe: true,
		Caps: Caps{ActiveUsers: Cap(200), Seats: Cap(20), StorageMB: Cap(51200), Sites: Cap(3), MessagesPerMonth: Cap(2000)},
	},
	"SCALE_MONTHLY": {
		Code: "SCALE_MONTHLY", Tier: "scale", Cadence: CadenceMonthly, SelfServe: true,
		Caps: Caps{ActiveUsers: Cap(500), StorageMB: Cap(204800), Sites: Cap(10)},
	},
	"SCALE_ANNUAL": {
		Code: "SCALE_ANNUAL", Tier: "scale", Cadence: CadenceAnnual, SelfServe: true,
		Caps: Caps{ActiveUsers: Cap(500), StorageMB: Cap(204800), Sites: Cap(10)},
	},
	// Bespoke community/enterprise grant: no caps at all. Not
	// purchasable through self-serve checkout.
	"COMMUNITY_ANNUAL": {
		Code: "COMMUNITY_ANNUAL", Tier: "community", Cadence: CadenceAnnual, SelfServe: false,
		Caps: Caps{},
	},
}

// LookupPlan returns the definition for a plan code. Unknown codes
// return ok=false, never an error.
func LookupPlan(code string) (PlanDefinition, bool) {
	def, ok := catalogue[code]
	return def, ok
}

// PlanCodes returns every code in the catalogue. Order is unspecified.
func PlanCodes() []string {
	codes := make([]string, 0, len(catalogue))
	for code := range catalogue {
		codes = append(codes, code)
	}
	return codes
}
