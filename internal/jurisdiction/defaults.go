package jurisdiction

// DefaultVersion identifies the built-in rule data set.
const DefaultVersion = "2024.1"

func brackets(bounds []float64, rates []float64) []TaxBracket {
	out := make([]TaxBracket, len(rates))
	for i, rate := range rates {
		b := TaxBracket{Rate: rate}
		if i > 0 {
			b.Min = bounds[i-1]
		}
		if i < len(bounds) {
			b.Max = Float(bounds[i])
		}
		out[i] = b
	}
	return out
}

// DefaultTable returns the built-in rule table. Every call returns a fresh copy.
func DefaultTable() *Table {
	configs := []Config{
		{
			Code:         "FI",
			Name:         "Finland",
			Currency:     "EUR",
			ExchangeRate: 1.0,
			Group:        "SCHENGEN",
			ResidentBrackets: brackets(
				[]float64{20500, 30500, 50400, 88200},
				[]float64{0.1264, 0.19, 0.3025, 0.34, 0.44},
			),
			NonResidentFlatRate:        Float(0.35),
			FlatRate:                   0.35,
			EmployerSocialSecurityRate: 0.20,
			EmployeeSocialSecurityRate: 0.0865,
			TreatyExists:               true,
			PerDiemRate:                51,
		},
		{
			Code:         "BR",
			Name:         "Brazil",
			Currency:     "BRL",
			ExchangeRate: 5.5,
			ResidentBrackets: brackets(
				[]float64{26963.20, 33919.80, 45012.60, 55976.16},
				[]float64{0, 0.075, 0.15, 0.225, 0.275},
			),
			NonResidentFlatRate:        Float(0.25),
			FlatRate:                   0.25,
			EmployerSocialSecurityRate: 0.368,
			EmployeeSocialSecurityRate: 0.14,
			EmployeeMonthlyCap:         Float(908.85),
			TreatyExists:               false,
			PerDiemRate:                72,
		},
		{
			Code:         "DE",
			Name:         "Germany",
			Currency:     "EUR",
			ExchangeRate: 1.0,
			Group:        "SCHENGEN",
			ResidentBrackets: brackets(
				[]float64{11604, 17005, 66760, 277825},
				[]float64{0, 0.14, 0.24, 0.42, 0.45},
			),
			NonResidentUsesResidentBrackets: true,
			FlatRate:                        0.30,
			EmployerSocialSecurityRate:      0.20,
			EmployeeSocialSecurityRate:      0.20,
			EmployeeMonthlyCap:              Float(1800),
			TreatyExists:                    true,
			PerDiemRate:                     28,
		},
		{
			Code:         "US",
			Name:         "United States",
			Currency:     "USD",
			ExchangeRate: 1.08,
			ResidentBrackets: brackets(
				[]float64{11600, 47150, 100525, 191950, 243725, 609350},
				[]float64{0.10, 0.12, 0.22, 0.24, 0.32, 0.35, 0.37},
			),
			NonResidentUsesResidentBrackets: true,
			FlatRate:                        0.30,
			EmployerSocialSecurityRate:      0.0765,
			EmployeeSocialSecurityRate:      0.0765,
			TreatyExists:                    true,
			PerDiemRate:                     70,
		},
		{
			Code:         "GB",
			Name:         "United Kingdom",
			Currency:     "GBP",
			ExchangeRate: 0.85,
			Group:        "GB",
			ResidentBrackets: brackets(
				[]float64{12570, 50270, 125140},
				[]float64{0, 0.20, 0.40, 0.45},
			),
			NonResidentUsesResidentBrackets: true,
			FlatRate:                        0.20,
			EmployerSocialSecurityRate:      0.138,
			EmployeeSocialSecurityRate:      0.08,
			TreatyExists:                    true,
			PerDiemRate:                     60,
		},
		{
			Code:         "SE",
			Name:         "Sweden",
			Currency:     "SEK",
			ExchangeRate: 11.5,
			Group:        "SCHENGEN",
			ResidentBrackets: brackets(
				[]float64{598500},
				[]float64{0.32, 0.52},
			),
			NonResidentFlatRate:        Float(0.25),
			FlatRate:                   0.25,
			EmployerSocialSecurityRate: 0.3142,
			EmployeeSocialSecurityRate: 0.07,
			TreatyExists:               true,
			PerDiemRate:                45,
		},
		{
			Code:         "PL",
			Name:         "Poland",
			Currency:     "PLN",
			ExchangeRate: 4.3,
			Group:        "SCHENGEN",
			ResidentBrackets: brackets(
				[]float64{30000, 120000},
				[]float64{0, 0.12, 0.32},
			),
			NonResidentFlatRate:        Float(0.20),
			FlatRate:                   0.20,
			EmployerSocialSecurityRate: 0.2048,
			EmployeeSocialSecurityRate: 0.1371,
			TreatyExists:               true,
			PerDiemRate:                30,
		},
		{
			Code:         "IN",
			Name:         "India",
			Currency:     "INR",
			ExchangeRate: 90,
			ResidentBrackets: brackets(
				[]float64{300000, 700000, 1000000, 1200000, 1500000},
				[]float64{0, 0.05, 0.10, 0.15, 0.20, 0.30},
			),
			FlatRate:                   0.30,
			EmployerSocialSecurityRate: 0.12,
			EmployeeSocialSecurityRate: 0.12,
			EmployeeMonthlyCap:         Float(1800),
			TreatyExists:               false,
			PerDiemRate:                40,
		},
		{
			Code:                "AE",
			Name:                "United Arab Emirates",
			Currency:            "AED",
			ExchangeRate:        3.97,
			ResidentBrackets:    brackets(nil, []float64{0}),
			NonResidentFlatRate: Float(0),
			FlatRate:            0,
			TreatyExists:        false,
			PerDiemRate:         65,
		},
	}

	table := &Table{Version: DefaultVersion, Jurisdictions: make(map[string]Config, len(configs))}
	for _, cfg := range configs {
		table.Jurisdictions[cfg.Code] = cfg
	}
	return table
}
