package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Sheet names of the fund spreadsheet template, in workbook order.
const (
	SheetFundOverview = "Fund Overview"
	SheetPerformance  = "Performance Data"
	SheetComposition  = "Portfolio Composition"
	SheetHoldings     = "Top Holdings"
	SheetSectors      = "Sector Allocation"
	SheetRiskMetrics  = "Risk Metrics"
	SheetCommentary   = "Fund Manager Commentary"
)

// FundLayout fixes the column order of every sheet. Readers and writers of
// the template both go through it so names round-trip exactly.
var FundLayout = []SheetLayout{
	{Name: SheetFundOverview, Columns: []string{"Fund Name", "Fund Type", "Investment Objective", "Risk Level", "Fund Manager", "Inception Date", "Fund Size", "Base Currency", "Minimum Investment"}},
	{Name: SheetPerformance, Columns: []string{"Performance Metric", "1 Month", "3 Months", "1 Year", "3 Years", "5 Years", "Since Inception"}},
	{Name: SheetComposition, Columns: []string{"Asset Class", "Weight"}},
	{Name: SheetHoldings, Columns: []string{"Rank", "Holding Name", "Asset Class", "Value (USD)", "Weight"}},
	{Name: SheetSectors, Columns: []string{"Sector", "Weight"}},
	{Name: SheetRiskMetrics, Columns: []string{"Risk Metric", "1 Year", "3 Years", "5 Years"}},
	{Name: SheetCommentary, Columns: []string{"Commentary"}},
}

type SheetLayout struct {
	Name    string
	Columns []string
}

// Sheet is a named table, rendered as one CSV section or one XLSX sheet.
type Sheet struct {
	Name  string `json:"name" yaml:"name"`
	Table Table  `json:"table" yaml:"table"`
}

type FundOverview struct {
	FundName            string `json:"fund_name" yaml:"fund_name"`
	FundType            string `json:"fund_type" yaml:"fund_type"`
	InvestmentObjective string `json:"investment_objective" yaml:"investment_objective"`
	RiskLevel           string `json:"risk_level" yaml:"risk_level"`
	FundManager         string `json:"fund_manager" yaml:"fund_manager"`
	InceptionDate       string `json:"inception_date" yaml:"inception_date"`
	FundSize            string `json:"fund_size" yaml:"fund_size"`
	BaseCurrency        string `json:"base_currency" yaml:"base_currency"`
	MinimumInvestment   string `json:"minimum_investment" yaml:"minimum_investment"`
}

func (o FundOverview) row() []string {
	return []string{o.FundName, o.FundType, o.InvestmentObjective, o.RiskLevel, o.FundManager, o.InceptionDate, o.FundSize, o.BaseCurrency, o.MinimumInvestment}
}

// PerformanceRow holds returns for 1M, 3M, 1Y, 3Y, 5Y and since inception.
type PerformanceRow struct {
	Metric  string    `json:"metric" yaml:"metric"`
	Returns [6]string `json:"returns" yaml:"returns"`
}

type WeightRow struct {
	Name   string `json:"name" yaml:"name"`
	Weight string `json:"weight" yaml:"weight"`
}

type HoldingRow struct {
	Rank       string `json:"rank" yaml:"rank"`
	Name       string `json:"name" yaml:"name"`
	AssetClass string `json:"asset_class" yaml:"asset_class"`
	ValueUSD   string `json:"value_usd" yaml:"value_usd"`
	Weight     string `json:"weight" yaml:"weight"`
}

type RiskRow struct {
	Metric     string `json:"metric" yaml:"metric"`
	OneYear    string `json:"one_year" yaml:"one_year"`
	ThreeYears string `json:"three_years" yaml:"three_years"`
	FiveYears  string `json:"five_years" yaml:"five_years"`
}

// FundReport is the content of the fund spreadsheet template. Cell values are
// kept as the user typed them.
type FundReport struct {
	Overview    FundOverview     `json:"overview" yaml:"overview"`
	Performance []PerformanceRow `json:"performance" yaml:"performance"`
	Composition []WeightRow      `json:"composition" yaml:"composition"`
	Holdings    []HoldingRow     `json:"holdings" yaml:"holdings"`
	Sectors     []WeightRow      `json:"sectors" yaml:"sectors"`
	Risk        []RiskRow        `json:"risk" yaml:"risk"`
	Commentary  string           `json:"commentary" yaml:"commentary"`
}

// FundTemplate returns the blank template handed out for filling in.
func FundTemplate() FundReport {
	return FundReport{
		Performance: []PerformanceRow{{Metric: "Fund Return (%)"}, {Metric: "Benchmark Return (%)"}},
		Composition: []WeightRow{{Name: "Equities"}, {Name: "Fixed Income"}, {Name: "Cash"}},
		Holdings:    []HoldingRow{{Rank: "1"}, {Rank: "2"}, {Rank: "3"}, {Rank: "4"}, {Rank: "5"}},
		Sectors:     []WeightRow{{Name: "Technology"}, {Name: "Healthcare"}, {Name: "Financials"}},
		Risk:        []RiskRow{{Metric: "Volatility (%)"}, {Metric: "Sharpe Ratio"}, {Metric: "Max Drawdown (%)"}},
	}
}

// Sheets lays the report out in template order.
func (r FundReport) Sheets() []Sheet {
	sheets := make([]Sheet, 0, len(FundLayout))
	for _, layout := range FundLayout {
		sheet := Sheet{Name: layout.Name, Table: Table{Headers: append([]string(nil), layout.Columns...)}}
		switch layout.Name {
		case SheetFundOverview:
			sheet.Table.Rows = [][]string{r.Overview.row()}
		case SheetPerformance:
			for _, p := range r.Performance {
				sheet.Table.Rows = append(sheet.Table.Rows, append([]string{p.Metric}, p.Returns[:]...))
			}
		case SheetComposition:
			sheet.Table.Rows = weightRows(r.Composition)
		case SheetHoldings:
			for _, h := range r.Holdings {
				sheet.Table.Rows = append(sheet.Table.Rows, []string{h.Rank, h.Name, h.AssetClass, h.ValueUSD, h.Weight})
			}
		case SheetSectors:
			sheet.Table.Rows = weightRows(r.Sectors)
		case SheetRiskMetrics:
			for _, k := range r.Risk {
				sheet.Table.Rows = append(sheet.Table.Rows, []string{k.Metric, k.OneYear, k.ThreeYears, k.FiveYears})
			}
		case SheetCommentary:
			sheet.Table.Rows = [][]string{{r.Commentary}}
		}
		sheets = append(sheets, sheet)
	}
	return sheets
}

func weightRows(rows []WeightRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, w := range rows {
		out = append(out, []string{w.Name, w.Weight})
	}
	return out
}

// FundReportFromSheets rebuilds a report from sheets read back from a
// spreadsheet. Every template sheet must be present with its exact columns.
func FundReportFromSheets(sheets []Sheet) (FundReport, error) {
	byName := make(map[string]Table, len(sheets))
	for _, s := range sheets {
		byName[s.Name] = s.Table
	}

	var report FundReport
	var problems []string
	for _, layout := range FundLayout {
		table, ok := byName[layout.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing sheet %q", layout.Name))
			continue
		}
		if !equalColumns(table.Headers, layout.Columns) {
			problems = append(problems, fmt.Sprintf("sheet %q has columns %v, want %v", layout.Name, table.Headers, layout.Columns))
			continue
		}

		for _, raw := range table.Rows {
			row := padRow(raw, len(layout.Columns))
			if isBlankRow(row) && layout.Name != SheetFundOverview {
				continue
			}
			switch layout.Name {
			case SheetFundOverview:
				report.Overview = FundOverview{
					FundName: row[0], FundType: row[1], InvestmentObjective: row[2],
					RiskLevel: row[3], FundManager: row[4], InceptionDate: row[5],
					FundSize: row[6], BaseCurrency: row[7], MinimumInvestment: row[8],
				}
			case SheetPerformance:
				p := PerformanceRow{Metric: row[0]}
				copy(p.Returns[:], row[1:])
				report.Performance = append(report.Performance, p)
			case SheetComposition:
				report.Composition = append(report.Composition, WeightRow{Name: row[0], Weight: row[1]})
			case SheetHoldings:
				report.Holdings = append(report.Holdings, HoldingRow{Rank: row[0], Name: row[1], AssetClass: row[2], ValueUSD: row[3], Weight: row[4]})
			case SheetSectors:
				report.Sectors = append(report.Sectors, WeightRow{Name: row[0], Weight: row[1]})
			case SheetRiskMetrics:
				report.Risk = append(report.Risk, RiskRow{Metric: row[0], OneYear: row[1], ThreeYears: row[2], FiveYears: row[3]})
			case SheetCommentary:
				if report.Commentary != "" {
					report.Commentary += "\n"
				}
				report.Commentary += row[0]
			}
		}
	}

	if len(problems) > 0 {
		return FundReport{}, fmt.Errorf("invalid fund workbook: %s", strings.Join(problems, "; "))
	}
	return report, nil
}

// Fields flattens the report into prompt fields.
func (r FundReport) Fields() map[string]string {
	fields := map[string]string{
		"fund_name":            r.Overview.FundName,
		"fund_type":            r.Overview.FundType,
		"investment_objective": r.Overview.InvestmentObjective,
		"risk_level":           r.Overview.RiskLevel,
		"fund_manager":         r.Overview.FundManager,
		"inception_date":       r.Overview.InceptionDate,
		"fund_size":            r.Overview.FundSize,
		"base_currency":        r.Overview.BaseCurrency,
		"minimum_investment":   r.Overview.MinimumInvestment,
	}

	for _, s := range r.Sheets() {
		if s.Name == SheetFundOverview || s.Name == SheetCommentary {
			continue
		}
		var b strings.Builder
		for _, row := range s.Table.Rows {
			for i, cell := range row {
				if cell == "" {
					continue
				}
				if b.Len() > 0 && i == 0 {
					b.WriteString("; ")
				} else if i > 0 {
					fmt.Fprintf(&b, " %s=", s.Table.Headers[i])
				}
				b.WriteString(cell)
			}
		}
		fields[fieldName(s.Name)] = b.String()
	}
	return fields
}

func fieldName(sheet string) string {
	return strings.ReplaceAll(strings.ToLower(sheet), " ", "_")
}

// ParseNumber reads a spreadsheet cell such as "12.5%", "$1,200" or "-3.1".
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func equalColumns(got, want []string) bool {
	if len(got) < len(want) {
		return false
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != want[i] {
			return false
		}
	}
	for _, extra := range got[len(want):] {
		if strings.TrimSpace(extra) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
