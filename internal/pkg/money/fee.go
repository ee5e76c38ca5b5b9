package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeRate is a percentage of the charged amount plus a flat per-transaction part.
type FeeRate struct {
	RatePercent decimal.Decimal `yaml:"rate_percent" json:"rate_percent"`
	FlatCents   int64           `yaml:"flat_cents" json:"flat_cents"`
}

// Apply computes rate/100 * base + flat_cents, rounded half-up to cents.
func (r FeeRate) Apply(base Money) Money {
	return base.Percent(r.RatePercent).Add(FromCents(r.FlatCents)).Round2()
}

func (r FeeRate) Validate() error {
	if r.RatePercent.IsNegative() || r.RatePercent.GreaterThan(hundred) {
		return fmt.Errorf("rate_percent must be between 0 and 100, got %s", r.RatePercent)
	}
	if r.FlatCents < 0 {
		return fmt.Errorf("flat_cents must not be negative, got %d", r.FlatCents)
	}
	return nil
}

// MethodRates are the processor and platform rates for one payment method.
type MethodRates struct {
	Processor FeeRate `yaml:"processor" json:"processor"`
	Platform  FeeRate `yaml:"platform" json:"platform"`
}

// FeeSchedule holds the configured rates per payment method.
// Card-present payments have their own rates; every other electronic
// method is priced as a manually keyed payment.
type FeeSchedule struct {
	Manual      MethodRates `yaml:"manual" json:"manual"`
	CardPresent MethodRates `yaml:"card_present" json:"card_present"`
}

func (s FeeSchedule) Validate() error {
	for name, r := range map[string]FeeRate{
		"manual.processor":       s.Manual.Processor,
		"manual.platform":        s.Manual.Platform,
		"card_present.processor": s.CardPresent.Processor,
		"card_present.platform":  s.CardPresent.Platform,
	} {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("fee schedule %s: %w", name, err)
		}
	}
	return nil
}

// Fees is the outcome of pricing one charge.
type Fees struct {
	Processor Money
	Platform  Money
	Net       Money
}

// Compute prices a gross amount. cardPresent selects the card-present rates
// and noFees (cash) yields zero fees.
func (s FeeSchedule) Compute(gross Money, cardPresent, noFees bool) Fees {
	if noFees {
		return Fees{Processor: Zero, Platform: Zero, Net: gross}
	}

	rates := s.Manual
	if cardPresent {
		rates = s.CardPresent
	}

	processor := rates.Processor.Apply(gross)
	platform := rates.Platform.Apply(gross)

	return Fees{
		Processor: processor,
		Platform:  platform,
		Net:       gross.Sub(processor).Sub(platform),
	}
}
