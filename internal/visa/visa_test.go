package visa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableProviderLookup(t *testing.T) {
	p := NewTableProvider(DefaultRules())
	ctx := context.Background()

	tests := []struct {
		name        string
		nationality string
		destination string
		wantDays    int
		wantType    string
		wantExempt  bool
		wantWork    bool
	}{
		{"Configured pair", "IN", "DE", 45, "EU Blue Card", false, true},
		{"Case-insensitive", "in", " de", 45, "EU Blue Card", false, true},
		{"Visa waiver", "US", "DE", 0, "Schengen visa waiver", true, false},
		{"Citizen", "BR", "br", 0, CitizenVisaType, false, true},
		{"Default rule", "AE", "PL", DefaultWaitDays, DefaultVisaType, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := p.Lookup(ctx, tt.nationality, tt.destination)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDays, rule.WaitDays)
			assert.Equal(t, tt.wantType, rule.VisaType)
			assert.Equal(t, tt.wantExempt, rule.VisaExempt)
			assert.Equal(t, tt.wantWork, rule.WorkAuthorized)
		})
	}
}

func TestTableProviderNormalizesRules(t *testing.T) {
	p := NewTableProvider([]Rule{
		{Origin: "fi", Destination: "no", WaitDays: -3, VisaType: "Nordic"},
		{Origin: "FI", Destination: "NO", WaitDays: 5, VisaType: "Nordic override"},
	})
	assert.Equal(t, 1, p.Len())

	rule, err := p.Lookup(context.Background(), "FI", "NO")
	require.NoError(t, err)
	assert.Equal(t, "Nordic override", rule.VisaType)
	assert.Equal(t, 5, rule.WaitDays)
}

func TestTableProviderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTableProvider(nil).Lookup(ctx, "FI", "DE")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultRule(t *testing.T) {
	rule := DefaultRule("fi", "xx")
	assert.Equal(t, "FI", rule.Origin)
	assert.Equal(t, "XX", rule.Destination)
	assert.Equal(t, 30, rule.WaitDays)
	assert.True(t, rule.WorkAuthorized)
	assert.False(t, rule.VisaExempt)
}
