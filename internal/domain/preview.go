package domain

// Per-unit cap increments for add-on purchases.
const (
	AV30BlockSize     = 25   // active users per AV30 block
	StorageBlockMB    = 5120 // storage per block
	MessagingPackSize = 500  // messages/month per pack
)

// Warning codes attached to previews. These are part of the checkout
// API contract and stored on pending orders, so they are stable strings.
const (
	WarnPlanNotInCatalogue  = "plan_not_in_catalogue"
	WarnUsingAddonsOnly     = "using_addons_only"
	WarnNegativeAddons      = "negative_addon_values_normalised_to_zero"
	WarnIgnoredForUnlimited = "ignored_for_unlimited_plan"
)

// AddonSelection is the quantity of each add-on product in a checkout.
type AddonSelection struct {
	AV30Blocks     int64 `json:"av30_blocks"`
	StorageBlocks  int64 `json:"storage_blocks"`
	ExtraSites     int64 `json:"extra_sites"`
	MessagingPacks int64 `json:"messaging_packs"`
}

// Normalise clamps negative quantities to zero. The second return is
// true when anything was clamped.
func (a AddonSelection) Normalise() (AddonSelection, bool) {
	clamped := false
	clamp := func(v int64) int64 {
		if v < 0 {
			clamped = true
			return 0
		}
		return v
	}
	return AddonSelection{
		AV30Blocks:     clamp(a.AV30Blocks),
		StorageBlocks:  clamp(a.StorageBlocks),
		ExtraSites:     clamp(a.ExtraSites),
		MessagingPacks: clamp(a.MessagingPacks),
	}, clamped
}

// Empty reports whether no add-ons were selected.
func (a AddonSelection) Empty() bool {
	return a.AV30Blocks == 0 && a.StorageBlocks == 0 && a.ExtraSites == 0 && a.MessagingPacks == 0
}

// Caps converts the selection into cap increments. Zero quantities
// contribute nil (no increment), not a zero cap.
func (a AddonSelection) Caps() Caps {
	var c Caps
	if a.AV30Blocks > 0 {
		c.ActiveUsers = Cap(a.AV30Blocks * AV30BlockSize)
	}
	if a.StorageBlocks > 0 {
		c.StorageMB = Cap(a.StorageBlocks * StorageBlockMB)
	}
	if a.ExtraSites > 0 {
		c.Sites = Cap(a.ExtraSites)
	}
	if a.MessagingPacks > 0 {
		c.MessagesPerMonth = Cap(a.MessagingPacks * MessagingPackSize)
	}
	return c
}

// Preview is the projected entitlement for a plan + add-on combination.
type Preview struct {
	PlanCode  string   `json:"plan_code"`
	Base      Caps     `json:"base"`
	Addons    Caps     `json:"addons"`
	Effective Caps     `json:"effective"`
	Warnings  []string `json:"warnings"`
}

// PreviewPlan combines catalogue base caps with add-on purchases into
// an effective caps projection. Pure: no I/O, deterministic.
//
// Rules:
//   - negative add-on quantities clamp to zero with a warning
//   - an unknown plan code resolves caps from add-ons alone
//   - a nil base field sums null-safely with a non-nil add-on field,
//     except messaging volume, which is all-or-nothing: an unlimited
//     base keeps nil and the pack purchase is flagged as ignored
func PreviewPlan(planCode string, addons AddonSelection) Preview {
	var warnings []string

	addons, clamped := addons.Normalise()
	if clamped {
		warnings = append(warnings, WarnNegativeAddons)
	}

	base, known := LookupPlan(planCode)
	if !known {
		warnings = append(warnings, WarnPlanNotInCatalogue)
		if !addons.Empty() {
			warnings = append(warnings, WarnUsingAddonsOnly)
		}
	}

	addonCaps := addons.Caps()

	sum := func(base, addon *int64) *int64 {
		switch {
		case addon == nil:
			return base
		case base == nil:
			return addon
		default:
			return Cap(*base + *addon)
		}
	}

	effective := Caps{
		ActiveUsers: sum(base.Caps.ActiveUsers, addonCaps.ActiveUsers),
		Seats:       base.Caps.Seats,
		StorageMB:   sum(base.Caps.StorageMB, addonCaps.StorageMB),
		Sites:       sum(base.Caps.Sites, addonCaps.Sites),
	}

	// Messaging volume is all-or-nothing: if a known plan includes
	// unlimited messaging, buying packs on top is meaningless and the
	// base nil wins.
	if known && base.Caps.MessagesPerMonth == nil && addonCaps.MessagesPerMonth != nil {
		warnings = append(warnings, WarnIgnoredForUnlimited)
		effective.MessagesPerMonth = nil
	} else {
		effective.MessagesPerMonth = sum(base.Caps.MessagesPerMonth, addonCaps.MessagesPerMonth)
	}

	return Preview{
		PlanCode:  planCode,
		Base:      base.Caps,
		Addons:    addonCaps,
		Effective: effective,
		Warnings:  warnings,
	}
}
