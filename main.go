package main

import (
	"fmt"
	"os"

	"github.com/dtnitsch/llm-report-pipeline/internal/db"
	"github.com/dtnitsch/llm-report-pipeline/internal/report"
	"github.com/dtnitsch/llm-report-pipeline/internal/server"
	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/help"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "llm-report",
		Usage: "Scrape pages, analyze them and generate reports with an LLM",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   models.DefaultConfigPath,
				Usage:   "Path to the YAML config file",
				EnvVars: []string{"LLM_REPORT_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log errors",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "Log level: debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write logs to this file, rotated",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory for generated artifacts (overrides render.output_dir)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path of the run history database (overrides database.path)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "factsheet",
				Usage:  "Generate a product factsheet or another catalogue document from form fields",
				Action: report.FactsheetAction,
				Flags: append(append(runFlags(), productFlags()...),
					&cli.StringSliceFlag{
						Name:    "field",
						Aliases: []string{"f"},
						Usage:   "Form field as key=value, repeatable (e.g. -f product_name=Acme)",
					},
					&cli.StringFlag{
						Name:  "fields-file",
						Usage: "YAML file of form fields",
					},
					&cli.StringFlag{
						Name:  "template",
						Usage: "Template kind (factsheet, feature_comparison, roadmap, faq, ab_test)",
					},
					&cli.IntFlag{
						Name:    "variants",
						Aliases: []string{"versions"},
						Value:   1,
						Usage:   "Number of distinct versions to generate (1-5)",
					},
				),
			},
			{
				Name:   "scrape",
				Usage:  "Fetch a page, analyze it and generate content suggestions",
				Action: report.ScrapeAction,
				Flags: append(runFlags(),
					&cli.StringFlag{
						Name:     "url",
						Aliases:  []string{"u"},
						Usage:    "Page to scrape",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "template",
						Usage: "Template kind (content_suggestions or seo_audit)",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Fetch timeout (defaults to fetch.timeout)",
					},
					&cli.IntFlag{
						Name:  "variants",
						Value: 1,
						Usage: "Number of suggestion variants to generate (1-5)",
					},
				),
			},
			{
				Name:   "analyze",
				Usage:  "Fetch a page and report its text analytics without generation",
				Action: report.AnalyzeAction,
				Flags: append(runFlags(),
					&cli.StringFlag{
						Name:     "url",
						Aliases:  []string{"u"},
						Usage:    "Page to analyze",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Fetch timeout (defaults to fetch.timeout)",
					},
				),
			},
			{
				Name:  "fund",
				Usage: "Fund report template and report generation",
				Subcommands: []*cli.Command{
					{
						Name:   "template",
						Usage:  "Write the blank fund report template",
						Action: report.FundTemplateAction,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "format",
								Value: "xlsx",
								Usage: "Template format: csv or xlsx",
							},
							&cli.StringFlag{
								Name:    "out",
								Aliases: []string{"o"},
								Usage:   "Output file (defaults to fund_template.<format>)",
							},
						},
					},
					{
						Name:   "report",
						Usage:  "Render a filled-in fund template, generating commentary when it is empty",
						Action: report.FundReportAction,
						Flags: append(runFlags(),
							&cli.StringFlag{
								Name:     "input",
								Aliases:  []string{"i"},
								Usage:    "Filled-in template (.csv or .xlsx)",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "skip-commentary",
								Usage: "Do not generate commentary when the template has none",
							},
						),
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the pipeline over HTTP",
				Action: server.ServeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
				},
			},
			{
				Name:  "quickstart",
				Usage: "Print example commands",
				Action: func(c *cli.Context) error {
					fmt.Print(help.ColdstartYAML)
					return nil
				},
			},
			{
				Name:  "runs",
				Usage: "Inspect the run history",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List recent runs",
						Action: db.RunsAction,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:    "limit",
								Aliases: []string{"n"},
								Value:   20,
								Usage:   "Maximum number of runs to show",
							},
							outputFlag(),
						},
					},
					{
						Name:      "show",
						Usage:     "Show one run, or the latest",
						ArgsUsage: "[run-id]",
						Action:    db.RunAction,
						Flags:     []cli.Flag{outputFlag()},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func productFlags() []cli.Flag {
	flags := make([]cli.Flag, 0, len(report.ProductFlags))
	for _, pf := range report.ProductFlags {
		flags = append(flags, &cli.StringFlag{Name: pf.Flag, Usage: pf.Usage})
	}
	return flags
}

// runFlags are shared by every command that starts a pipeline run.
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "format",
			Usage: "Export formats: pdf, docx, csv, xlsx, txt (default: all)",
		},
		&cli.StringFlag{
			Name:  "logo",
			Usage: "Logo image placed at the top of documents (overrides render.logo_path)",
		},
		&cli.StringFlag{
			Name:  "image-url",
			Usage: "Image to embed in documents",
		},
		outputFlag(),
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "output",
		Usage: "Print the result as json or yaml instead of a summary",
	}
}
