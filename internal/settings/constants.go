package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "site_name"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "Fusion AI"

	// PricingPrimePercentageKey is the global percentage markup applied to
	// all computed base costs.
	PricingPrimePercentageKey = "pricing_prime_percentage"
	// DefaultPricingPrimePercentage applies no markup.
	DefaultPricingPrimePercentage = 0.0

	// ClassifierFeeCentsKey is the flat NeuroSwitch routing fee per request,
	// stored in cents.
	ClassifierFeeCentsKey = "neuroswitch_classifier_fee_cents"
	// DefaultClassifierFeeDollars is the fallback routing fee in dollars.
	DefaultClassifierFeeDollars = 0.001
)
