package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationDays(t *testing.T) {
	tests := []struct {
		code     string
		wantDays int
		wantOK   bool
	}{
		{code: "6days", wantDays: 7, wantOK: true},
		{code: "15days", wantDays: 17, wantOK: true},
		{code: "30days", wantDays: 0, wantOK: false},
		{code: "", wantDays: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			days, ok := DurationDays(tt.code)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDays, days)
		})
	}
}

func TestComputeAmount(t *testing.T) {
	tests := []struct {
		name     string
		plan     string
		duration string
		want     int64
		wantErr  bool
	}{
		{name: "500ml for 6 days", plan: "500ml", duration: "6days", want: 30000},
		{name: "500ml for 15 days", plan: "500ml", duration: "15days", want: 75000},
		{name: "1L for 6 days", plan: "1L", duration: "6days", want: 57000},
		{name: "unknown plan", plan: "2L", duration: "6days", wantErr: true},
		{name: "unknown duration", plan: "500ml", duration: "7days", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeAmount(tt.plan, tt.duration)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog(t *testing.T) {
	offers := Catalog()
	require.Len(t, offers, 4)

	assert.Equal(t, "1L", offers[0].PlanType)
	assert.Equal(t, "6days", offers[0].DurationCode)
	assert.Equal(t, "500ml", offers[3].PlanType)
	assert.Equal(t, "15days", offers[3].DurationCode)

	for _, o := range offers {
		amount, err := ComputeAmount(o.PlanType, o.DurationCode)
		require.NoError(t, err)
		assert.Equal(t, amount, o.Amount)
		assert.Greater(t, o.DeliveredDays, o.BilledDays)
		assert.Equal(t, Currency, o.Currency)
	}
}
