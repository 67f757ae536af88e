package render

import (
	"bytes"
	"fmt"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/wcharczuk/go-chart/v2"
)

const (
	chartWidth  = 800
	chartHeight = 480
)

// renderCharts draws every chart as PNG. A chart that fails to draw is left
// out and reported like a missing asset.
func renderCharts(charts []Chart) ([]*imageAsset, []error) {
	var images []*imageAsset
	var problems []error
	for i, c := range charts {
		var buf bytes.Buffer
		if err := drawChart(c, &buf); err != nil {
			problems = append(problems, &models.RenderError{Kind: models.RenderMissingAsset, Asset: "chart: " + c.Title, Err: err})
			continue
		}
		img, err := decodeAsset(fmt.Sprintf("chart%d", i), buf.Bytes())
		if err != nil {
			problems = append(problems, &models.RenderError{Kind: models.RenderMissingAsset, Asset: "chart: " + c.Title, Err: err})
			continue
		}
		images = append(images, img)
	}
	return images, problems
}

func drawChart(c Chart, buf *bytes.Buffer) error {
	switch c.Kind {
	case ChartPie:
		return pieChart(c).Render(chart.PNG, buf)
	case ChartBar:
		bar, err := barChart(c)
		if err != nil {
			return err
		}
		return bar.Render(chart.PNG, buf)
	case ChartLine:
		line, err := lineChart(c)
		if err != nil {
			return err
		}
		return line.Render(chart.PNG, buf)
	}
	return fmt.Errorf("unknown chart kind %q", c.Kind)
}

func pieChart(c Chart) chart.PieChart {
	values := make([]chart.Value, 0, len(c.Values))
	for i, v := range c.Values {
		values = append(values, chart.Value{Label: label(c.Labels, i), Value: v})
	}
	return chart.PieChart{
		Title:  c.Title,
		Width:  chartHeight,
		Height: chartHeight,
		Values: values,
	}
}

func barChart(c Chart) (chart.BarChart, error) {
	if len(c.Values) == 0 {
		return chart.BarChart{}, fmt.Errorf("bar chart %q has no values", c.Title)
	}

	lo, hi := 0.0, c.Values[0]
	bars := make([]chart.Value, 0, len(c.Values))
	for i, v := range c.Values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		bars = append(bars, chart.Value{Label: label(c.Labels, i), Value: v})
	}
	if hi == lo {
		hi = lo + 1
	}

	return chart.BarChart{
		Title:    c.Title,
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: 40,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{Range: &chart.ContinuousRange{Min: lo, Max: hi * 1.1}},
		Bars:  bars,
	}, nil
}

func lineChart(c Chart) (*chart.Chart, error) {
	if len(c.Labels) < 2 {
		return nil, fmt.Errorf("line chart %q needs at least two points", c.Title)
	}

	ticks := make([]chart.Tick, 0, len(c.Labels))
	xs := make([]float64, 0, len(c.Labels))
	for i, l := range c.Labels {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: l})
		xs = append(xs, float64(i))
	}

	graph := &chart.Chart{
		Title:  c.Title,
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20},
		},
		XAxis: chart.XAxis{Ticks: ticks},
	}
	for _, s := range c.Series {
		if len(s.Values) != len(xs) {
			return nil, fmt.Errorf("series %q has %d values, want %d", s.Name, len(s.Values), len(xs))
		}
		graph.Series = append(graph.Series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: s.Values,
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(graph)}
	return graph, nil
}

func label(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return fmt.Sprintf("#%d", i+1)
}
