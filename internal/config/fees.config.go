package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"reconciliation-service/internal/pkg/money"
)

// LoadFeeSchedule builds the schedule from env vars and, when path is set,
// overlays the YAML file on top.
func LoadFeeSchedule(path string) (money.FeeSchedule, error) {
	schedule := money.FeeSchedule{
		Manual: money.MethodRates{
			Processor: feeRateFromEnv("PROCESSOR_MANUAL", "2.9", 30),
			Platform:  feeRateFromEnv("PLATFORM_MANUAL", "1.0", 0),
		},
		CardPresent: money.MethodRates{
			Processor: feeRateFromEnv("PROCESSOR_CARD_PRESENT", "2.7", 5),
			Platform:  feeRateFromEnv("PLATFORM_CARD_PRESENT", "1.0", 0),
		},
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return schedule, fmt.Errorf("failed to read fee schedule %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &schedule); err != nil {
			return schedule, fmt.Errorf("failed to parse fee schedule %s: %w", path, err)
		}
	}

	if err := schedule.Validate(); err != nil {
		return schedule, err
	}
	return schedule, nil
}

func feeRateFromEnv(prefix, defaultRate string, defaultCents int64) money.FeeRate {
	rate, err := decimal.NewFromString(getEnv(prefix+"_RATE", defaultRate))
	if err != nil {
		rate = decimal.RequireFromString(defaultRate)
	}
	return money.FeeRate{
		RatePercent: rate,
		FlatCents:   getEnvAsInt64(prefix+"_CENTS", defaultCents),
	}
}
