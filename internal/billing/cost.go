// Package billing computes per-request provider costs and routing fees.
//
// Cost amounts are expressed in micro-dollars (1e-6 USD), which makes the
// six-decimal rounding the billing policy requires a property of the type
// rather than a formatting concern.
package billing

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/Fusionaimcp4/Fusion/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MicrosPerDollar converts between dollars and micro-dollars.
const MicrosPerDollar = 1_000_000

// defaultRatePer1K is the fallback token rate in dollars per 1K tokens,
// applied to both input and output when no stored rate matches.
const defaultRatePer1K = 0.002

// providerSynonyms maps alternate provider spellings onto canonical names.
var providerSynonyms = map[string]string{
	"gemini": "google",
	"claude": "anthropic",
}

// fixedPriceMicros maps provider/model keys to flat per-call prices for
// models that are not token-metered, such as image generation.
var fixedPriceMicros = map[string]int64{
	"openai/dall-e-3":               40_000,
	"openai/dall-e-2":               20_000,
	"openai/gpt-image-1":            40_000,
	"stabilityai/stable-image-core": 30_000,
}

// NormalizeProvider lowercases a provider name and resolves known synonyms.
func NormalizeProvider(provider string) string {
	normalized := strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerSynonyms[normalized]; ok {
		return canonical
	}
	return normalized
}

// ModelKey builds the canonical provider/model lookup key. Model IDs that
// already carry a provider prefix are kept as-is.
func ModelKey(provider, modelID string) string {
	provider = NormalizeProvider(provider)
	modelID = strings.ToLower(strings.TrimSpace(modelID))
	if modelID == "" {
		return provider
	}
	if strings.Contains(modelID, "/") {
		return modelID
	}
	return provider + "/" + modelID
}

// Calculator computes request costs against stored model rates.
type Calculator struct {
	db *gorm.DB
}

// NewCalculator constructs a Calculator backed by GORM.
func NewCalculator(db *gorm.DB) *Calculator {
	return &Calculator{db: db}
}

// ComputeProviderCost returns the billable cost of one request in
// micro-dollars.
//
// The function never fails: missing rates, malformed config, and database
// errors all degrade to hardcoded defaults and are logged. Given fixed
// inputs and unchanged stored config the result is deterministic.
func (c *Calculator) ComputeProviderCost(ctx context.Context, provider, modelID string, inputTokens, outputTokens int64) int64 {
	normalizedProvider := NormalizeProvider(provider)
	modelKey := ModelKey(provider, modelID)
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}

	multiplier := primeMultiplier()

	if flatMicros, ok := fixedPriceMicros[modelKey]; ok {
		return roundMicros(float64(flatMicros) * multiplier)
	}

	inputPer1K, outputPer1K := c.lookupRatesPer1K(ctx, normalizedProvider, modelKey)

	base := float64(inputTokens)/1000*inputPer1K + float64(outputTokens)/1000*outputPer1K
	return roundMicros(base * MicrosPerDollar * multiplier)
}

// lookupRatesPer1K resolves the stored token rates in dollars per 1K tokens,
// falling back to defaultRatePer1K when no usable rate exists.
func (c *Calculator) lookupRatesPer1K(ctx context.Context, provider, modelKey string) (float64, float64) {
	if c == nil || c.db == nil {
		log.WithField("model", modelKey).Warn("billing: no database, using default token rates")
		return defaultRatePer1K, defaultRatePer1K
	}

	var rate models.ModelRate
	errFind := c.db.WithContext(ctx).
		Where("LOWER(provider) = ? AND LOWER(model_id) = ? AND is_active = ?", provider, modelKey, true).
		First(&rate).Error
	if errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithError(errFind).WithField("model", modelKey).Warn("billing: rate lookup failed, using default token rates")
		} else {
			log.WithField("model", modelKey).Info("billing: no stored rate, using default token rates")
		}
		return defaultRatePer1K, defaultRatePer1K
	}

	if rate.InputCostPerMillionTokens < 0 || rate.OutputCostPerMillionTokens < 0 ||
		math.IsNaN(rate.InputCostPerMillionTokens) || math.IsNaN(rate.OutputCostPerMillionTokens) {
		log.WithField("model", modelKey).Warn("billing: stored rate invalid, using default token rates")
		return defaultRatePer1K, defaultRatePer1K
	}

	// Stored rates are per 1M tokens; the cost formula works per 1K.
	return rate.InputCostPerMillionTokens / 1000, rate.OutputCostPerMillionTokens / 1000
}

// ClassifierFeeMicros returns the flat NeuroSwitch routing fee for one
// request in micro-dollars. Missing or malformed config degrades to the
// hardcoded default.
func ClassifierFeeMicros() int64 {
	cents, ok := settings.DBConfigFloat(settings.ClassifierFeeCentsKey)
	if !ok || cents < 0 || math.IsNaN(cents) {
		log.WithField("key", settings.ClassifierFeeCentsKey).Warn("billing: classifier fee unavailable, using default")
		return roundMicros(settings.DefaultClassifierFeeDollars * MicrosPerDollar)
	}
	return roundMicros(cents / 100 * MicrosPerDollar)
}

// primeMultiplier resolves the global pricing prime markup as a multiplier.
func primeMultiplier() float64 {
	percentage, ok := settings.DBConfigFloat(settings.PricingPrimePercentageKey)
	if !ok {
		log.WithField("key", settings.PricingPrimePercentageKey).Warn("billing: prime percentage unavailable, applying no markup")
		return 1.0
	}
	if percentage < 0 || math.IsNaN(percentage) || math.IsInf(percentage, 0) {
		log.WithField("key", settings.PricingPrimePercentageKey).Warn("billing: invalid prime percentage, applying no markup")
		return 1.0
	}
	return 1 + percentage/100
}

// roundMicros rounds a fractional micro-dollar amount to the nearest micro.
func roundMicros(micros float64) int64 {
	if micros <= 0 || math.IsNaN(micros) {
		return 0
	}
	return int64(math.Round(micros))
}
