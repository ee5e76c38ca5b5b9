package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-service/internal/pkg/money"
)

func rate(pct string, cents int64) money.FeeRate {
	return money.FeeRate{RatePercent: decimal.RequireFromString(pct), FlatCents: cents}
}

func defaultSchedule() money.FeeSchedule {
	return money.FeeSchedule{
		Manual: money.MethodRates{
			Processor: rate("2.9", 30),
			Platform:  rate("1.0", 0),
		},
		CardPresent: money.MethodRates{
			Processor: rate("2.7", 5),
			Platform:  rate("1.0", 0),
		},
	}
}

func TestFeeRate_Apply(t *testing.T) {
	tests := []struct {
		name string
		rate money.FeeRate
		base string
		want string
	}{
		{name: "manual processor rounds half up", rate: rate("2.9", 30), base: "113.00", want: "3.58"},
		{name: "card present processor", rate: rate("2.7", 5), base: "113.00", want: "3.10"},
		{name: "platform percent only", rate: rate("1.0", 0), base: "113.00", want: "1.13"},
		{name: "flat only", rate: rate("0", 25), base: "10.00", want: "0.25"},
		{name: "zero base keeps flat part", rate: rate("2.9", 30), base: "0", want: "0.30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rate.Apply(money.MustParse(tt.base))
			assert.Equal(t, tt.want, got.String())
			assert.True(t, got.Equal(got.Round2()), "fee must already be at cent precision")
		})
	}
}

func TestFeeRate_Validate(t *testing.T) {
	assert.NoError(t, rate("2.9", 30).Validate())
	assert.Error(t, rate("-1", 0).Validate())
	assert.Error(t, rate("100.01", 0).Validate())
	assert.Error(t, rate("1", -5).Validate())
}

func TestFeeSchedule_Compute(t *testing.T) {
	s := defaultSchedule()
	gross := money.MustParse("113.00")

	t.Run("manual", func(t *testing.T) {
		fees := s.Compute(gross, false, false)
		assert.Equal(t, "3.58", fees.Processor.String())
		assert.Equal(t, "1.13", fees.Platform.String())
		assert.Equal(t, "108.29", fees.Net.String())
		assert.True(t, fees.Net.Add(fees.Processor).Add(fees.Platform).Equal(gross))
	})

	t.Run("card present", func(t *testing.T) {
		fees := s.Compute(gross, true, false)
		assert.Equal(t, "3.10", fees.Processor.String())
		assert.Equal(t, "1.13", fees.Platform.String())
		assert.Equal(t, "108.77", fees.Net.String())
	})

	t.Run("cash carries no fees", func(t *testing.T) {
		fees := s.Compute(gross, false, true)
		assert.True(t, fees.Processor.IsZero())
		assert.True(t, fees.Platform.IsZero())
		assert.True(t, fees.Net.Equal(gross))
	})
}

func TestFeeSchedule_Validate(t *testing.T) {
	s := defaultSchedule()
	require.NoError(t, s.Validate())

	s.CardPresent.Platform = rate("150", 0)
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card_present.platform")
}
