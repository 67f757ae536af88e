package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFund() FundReport {
	return FundReport{
		Overview: FundOverview{
			FundName: "Global Growth", FundType: "Equity", InvestmentObjective: "Long-term growth",
			RiskLevel: "High", FundManager: "J. Doe", InceptionDate: "2015-01-01",
			FundSize: "$1.2B", BaseCurrency: "USD", MinimumInvestment: "$1,000",
		},
		Performance: []PerformanceRow{{Metric: "Fund Return (%)", Returns: [6]string{"1.2", "3.4", "10.5", "25.0", "48.1", "120.3"}}},
		Composition: []WeightRow{{Name: "Equities", Weight: "90%"}, {Name: "Cash", Weight: "10%"}},
		Holdings:    []HoldingRow{{Rank: "1", Name: "Acme Corp", AssetClass: "Equity", ValueUSD: "1000000", Weight: "5%"}},
		Sectors:     []WeightRow{{Name: "Technology", Weight: "40%"}},
		Risk:        []RiskRow{{Metric: "Sharpe Ratio", OneYear: "1.1", ThreeYears: "0.9", FiveYears: "0.8"}},
		Commentary:  "Markets were volatile.",
	}
}

func TestFundSheetsFollowLayout(t *testing.T) {
	sheets := sampleFund().Sheets()
	require.Len(t, sheets, len(FundLayout))

	for i, layout := range FundLayout {
		assert.Equal(t, layout.Name, sheets[i].Name)
		assert.Equal(t, layout.Columns, sheets[i].Table.Headers)
		for _, row := range sheets[i].Table.Rows {
			assert.Len(t, row, len(layout.Columns), "sheet %s", layout.Name)
		}
	}
}

func TestFundReportFromSheets(t *testing.T) {
	want := sampleFund()

	got, err := FundReportFromSheets(want.Sheets())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFundReportFromSheetsRejectsBadLayout(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Sheet) []Sheet
		want   string
	}{
		{
			name:   "missing sheet",
			mutate: func(s []Sheet) []Sheet { return s[1:] },
			want:   `missing sheet "Fund Overview"`,
		},
		{
			name: "renamed column",
			mutate: func(s []Sheet) []Sheet {
				s[2].Table.Headers = []string{"Asset", "Weight"}
				return s
			},
			want: `sheet "Portfolio Composition"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FundReportFromSheets(tt.mutate(sampleFund().Sheets()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFundFields(t *testing.T) {
	fields := sampleFund().Fields()

	assert.Equal(t, "Global Growth", fields["fund_name"])
	assert.Contains(t, fields["top_holdings"], "Acme Corp")
	assert.Contains(t, fields["performance_data"], "1 Year=10.5")
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"12.5%", 12.5, true},
		{"$1,200", 1200, true},
		{" -3.1 ", -3.1, true},
		{"", 0, false},
		{"n/a", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}
