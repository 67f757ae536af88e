package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dtnitsch/llm-report-pipeline/internal/common"
	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/pipeline"
	"github.com/dtnitsch/llm-report-pipeline/pkg/render"
	"github.com/dtnitsch/llm-report-pipeline/pkg/session"
	"github.com/dtnitsch/llm-report-pipeline/pkg/storage"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func FactsheetAction(c *cli.Context) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Kind:     pipeline.KindFactsheet,
		Template: models.TemplateKind(c.String("template")),
		Fields:   fields,
		Variants: c.Int("variants"),
	}
	return run(c, req)
}

func ScrapeAction(c *cli.Context) error {
	url, err := common.ValidateURL(c.String("url"))
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Kind:     pipeline.KindScrape,
		Template: models.TemplateKind(c.String("template")),
		URL:      url,
		Timeout:  c.Duration("timeout"),
		Variants: c.Int("variants"),
	}
	return run(c, req)
}

func AnalyzeAction(c *cli.Context) error {
	url, err := common.ValidateURL(c.String("url"))
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Kind:    pipeline.KindAnalyze,
		URL:     url,
		Timeout: c.Duration("timeout"),
	}
	return run(c, req)
}

func FundReportAction(c *cli.Context) error {
	fund, err := render.LoadFundReport(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to read fund report: %w", err)
	}

	req := pipeline.Request{
		Kind:           pipeline.KindFund,
		Fund:           &fund,
		SkipCommentary: c.Bool("skip-commentary"),
	}
	return run(c, req)
}

// FundTemplateAction writes the blank fund template. It does not start a run.
func FundTemplateAction(c *cli.Context) error {
	format, err := models.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	if format != models.FormatCSV && format != models.FormatXLSX {
		return fmt.Errorf("the fund template is available as csv or xlsx, not %s", format)
	}

	logger := common.NewLogger(c)
	r := render.NewRenderer(render.WithLogger(logger), render.WithCharts(false))
	artifact, err := r.Render(c.Context, render.FundTemplateDocument(), format)
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		out = artifact.SuggestedFilename
	}
	s := &storage.Storage{}
	if err := s.SaveFile(out, artifact.Payload); err != nil {
		return err
	}
	fmt.Printf("Fund template saved to %s\n", out)
	return nil
}

// run executes one pipeline run and prints its outcome.
func run(c *cli.Context, req pipeline.Request) error {
	app, err := common.NewApp(c, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	req.Formats, err = common.Formats(c)
	if err != nil {
		return err
	}
	req.Assets = render.Assets{
		LogoPath: firstNonEmpty(c.String("logo"), app.Config.Render.LogoPath),
		ImageURL: c.String("image-url"),
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New()
	report, err := app.Controller.Run(ctx, sess, req)
	if report == nil {
		return err
	}

	if output := c.String("output"); output != "" {
		if werr := common.WriteOutput(os.Stdout, output, report); werr != nil {
			return werr
		}
	} else {
		printSummary(report)
	}

	if err != nil {
		return cli.Exit(models.UserMessage(err), exitCode(err))
	}
	return nil
}

func printSummary(r *pipeline.Report) {
	fmt.Printf("Run %s (%s) finished in state %s\n", r.RunID, r.Kind, r.State)
	if r.Analysis != nil {
		fmt.Printf("  Language: %s  Words: %d  Readability: %.1f\n",
			r.Analysis.Language, r.Analysis.WordCount, r.Analysis.Readability)
	}
	if len(r.Generations) > 0 {
		fmt.Printf("  Model: %s\n", r.Generations[0].Model)
	}
	for _, g := range r.Generations {
		fmt.Printf("\n--- Variant %d ---\n%s\n", g.Variant, strings.TrimSpace(g.Text))
	}
	if len(r.Saved) > 0 {
		fmt.Println()
		for _, a := range r.Saved {
			fmt.Printf("  %-5s %s (%d bytes)\n", a.Format, a.Path, a.SizeBytes)
			for _, w := range a.Warnings {
				fmt.Printf("        warning: %s\n", w)
			}
		}
	}
}

// exitCode is 1 for invalid input and 2 for failures of a stage.
func exitCode(err error) int {
	var se *pipeline.StageError
	if errors.As(err, &se) && se.Stage == pipeline.StageValidation {
		return 1
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 2
}

// ProductFlags maps the factsheet form flags onto template fields.
var ProductFlags = []struct {
	Flag  string
	Field string
	Usage string
}{
	{"product-name", "product_name", "Product or service name"},
	{"description", "description", "Product description"},
	{"target-audience", "target_audience", "Target audience"},
	{"key-features", "key_features", "Key features"},
	{"price", "price", "Pricing information"},
	{"customer-benefits", "customer_benefits", "Customer benefits"},
	{"usp", "unique_selling_point", "Unique selling point"},
	{"competitors", "competitors", "Competitors"},
	{"industry", "industry", "Industry"},
	{"launch-date", "launch_date", "Launch date"},
	{"contact-info", "contact_info", "Contact information"},
	{"website", "website", "Website"},
	{"tone", "tone_of_voice", "Tone of voice: Formal, Casual, Professional, Friendly or Technical"},
	{"layout", "factsheet_style", "Layout style: Minimalist, Corporate, Creative or Innovative"},
}

// readFields merges --fields-file, the product flags and --field, in that
// order of precedence from lowest to highest.
func readFields(c *cli.Context) (map[string]string, error) {
	fields := map[string]string{}
	if path := c.String("fields-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fields file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse fields file %s: %w", path, err)
		}
	}

	for _, pf := range ProductFlags {
		if c.IsSet(pf.Flag) {
			fields[pf.Field] = c.String(pf.Flag)
		}
	}

	flags, err := common.ParseFields(c.StringSlice("field"))
	if err != nil {
		return nil, err
	}
	for k, v := range flags {
		fields[k] = v
	}
	return fields, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
