package jurisdiction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableIsValid(t *testing.T) {
	table := DefaultTable()
	require.NoError(t, table.Validate())
	assert.Equal(t, DefaultVersion, table.Version)
	assert.Equal(t, []string{"AE", "BR", "DE", "FI", "GB", "IN", "PL", "SE", "US"}, table.Codes())
}

func TestDefaultTableReturnsCopies(t *testing.T) {
	first := DefaultTable()
	delete(first.Jurisdictions, "BR")

	_, ok := DefaultTable().Lookup("BR")
	assert.True(t, ok)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	table := DefaultTable()

	cfg, ok := table.Lookup(" br ")
	require.True(t, ok)
	assert.Equal(t, "BRL", cfg.Currency)

	_, ok = table.Lookup("XX")
	assert.False(t, ok)

	var nilTable *Table
	_, ok = nilTable.Lookup("BR")
	assert.False(t, ok)
}

func TestHasTreaty(t *testing.T) {
	table := DefaultTable().Merge("", []Config{
		{Code: "NO", Currency: "NOK", ExchangeRate: 11.7, TreatyExists: true, TreatyPartners: []string{"fi"}},
	})

	tests := []struct {
		name     string
		home     string
		host     string
		expected bool
	}{
		{"Treaty host without partner list", "FI", "DE", true},
		{"No treaty host", "FI", "BR", false},
		{"Listed partner", "FI", "NO", true},
		{"Unlisted partner", "US", "NO", false},
		{"Unknown host", "FI", "XX", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, table.HasTreaty(tt.home, tt.host))
		})
	}
}

func TestValidateBrackets(t *testing.T) {
	tests := []struct {
		name     string
		brackets []TaxBracket
		wantErr  string
	}{
		{
			name:     "Valid progressive set",
			brackets: []TaxBracket{{Min: 0, Max: Float(100), Rate: 0.1}, {Min: 100, Rate: 0.2}},
		},
		{
			name:     "Single open-ended bracket",
			brackets: []TaxBracket{{Min: 0, Rate: 0}},
		},
		{
			name:    "Empty set",
			wantErr: "empty",
		},
		{
			name:     "Rate above one",
			brackets: []TaxBracket{{Min: 0, Rate: 1.5}},
			wantErr:  "within [0,1]",
		},
		{
			name:     "No open-ended bracket",
			brackets: []TaxBracket{{Min: 0, Max: Float(100), Rate: 0.1}},
			wantErr:  "exactly one open-ended",
		},
		{
			name:     "Open-ended bracket not last",
			brackets: []TaxBracket{{Min: 0, Rate: 0.1}, {Min: 100, Rate: 0.2}},
			wantErr:  "not the top bracket",
		},
		{
			name:     "Overlapping brackets",
			brackets: []TaxBracket{{Min: 0, Max: Float(100), Rate: 0.1}, {Min: 50, Rate: 0.2}},
			wantErr:  "overlaps",
		},
		{
			name:     "Gap between brackets",
			brackets: []TaxBracket{{Min: 0, Max: Float(100), Rate: 0.1}, {Min: 150, Rate: 0.2}},
			wantErr:  "gap",
		},
		{
			name:     "Sub-cent gap is contiguous",
			brackets: []TaxBracket{{Min: 0, Max: Float(100), Rate: 0.1}, {Min: 100.001, Rate: 0.2}},
		},
		{
			name:     "Sub-cent overlap is contiguous",
			brackets: []TaxBracket{{Min: 0, Max: Float(100.005), Rate: 0.1}, {Min: 100, Rate: 0.2}},
		},
		{
			name:     "One unit gap",
			brackets: []TaxBracket{{Min: 0, Max: Float(100), Rate: 0.1}, {Min: 101, Rate: 0.2}},
			wantErr:  "gap",
		},
		{
			name:     "Two cent overlap",
			brackets: []TaxBracket{{Min: 0, Max: Float(100.02), Rate: 0.1}, {Min: 100, Rate: 0.2}},
			wantErr:  "overlaps",
		},
		{
			name:     "Decreasing rates",
			brackets: []TaxBracket{{Min: 0, Max: Float(100), Rate: 0.3}, {Min: 100, Rate: 0.2}},
			wantErr:  "lower than previous",
		},
		{
			name:     "Max not above min",
			brackets: []TaxBracket{{Min: 100, Max: Float(100), Rate: 0.1}, {Min: 100, Rate: 0.2}},
			wantErr:  "must exceed minimum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBrackets(tt.brackets)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidateCollectsErrors(t *testing.T) {
	cfg := Config{
		Code:                       "XX",
		ExchangeRate:               0,
		EmployerSocialSecurityRate: 1.2,
		EmployeeMonthlyCap:         Float(-1),
		PerDiemRate:                -5,
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "currency is required")
	assert.Contains(t, msg, "exchange rate")
	assert.Contains(t, msg, "employer social security")
	assert.Contains(t, msg, "monthly cap")
	assert.Contains(t, msg, "per-diem")
}

func TestTableValidateNamesJurisdiction(t *testing.T) {
	table := &Table{Jurisdictions: map[string]Config{
		"ZZ": {Code: "ZZ", Currency: "ZZZ", ExchangeRate: 1, ResidentBrackets: []TaxBracket{{Min: 0, Rate: 2}}},
	}}
	err := table.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jurisdiction ZZ")

	var nilTable *Table
	assert.Error(t, nilTable.Validate())
}

func TestMerge(t *testing.T) {
	base := DefaultTable()
	merged := base.Merge("custom-1", []Config{
		{Code: "br", Currency: "brl", ExchangeRate: 6.0, NonResidentFlatRate: Float(0.25), PerDiemRate: 80},
		{Code: "", Currency: "XXX"},
		{Code: "no", Currency: "nok", ExchangeRate: 11.7, FlatRate: 0.22, Group: "schengen"},
	})

	assert.Equal(t, "custom-1", merged.Version)
	assert.Equal(t, DefaultVersion, base.Version)

	br, ok := merged.Lookup("BR")
	require.True(t, ok)
	assert.Equal(t, 6.0, br.ExchangeRate)
	assert.Equal(t, "BRL", br.Currency)

	no, ok := merged.Lookup("NO")
	require.True(t, ok)
	assert.Equal(t, "SCHENGEN", no.Group)

	original, _ := base.Lookup("BR")
	assert.Equal(t, 5.5, original.ExchangeRate)
	assert.Len(t, merged.Jurisdictions, len(base.Jurisdictions)+1)

	kept := base.Merge("  ", nil)
	assert.Equal(t, DefaultVersion, kept.Version)
}

func TestHasSplitRates(t *testing.T) {
	assert.True(t, Config{EmployerSocialSecurityRate: 0.1}.HasSplitRates())
	assert.False(t, Config{SocialSecurityRate: 0.3}.HasSplitRates())
}

func TestUpperBound(t *testing.T) {
	assert.Equal(t, 100.0, TaxBracket{Max: Float(100)}.UpperBound())
	assert.True(t, TaxBracket{}.UpperBound() > 1e300)
}
