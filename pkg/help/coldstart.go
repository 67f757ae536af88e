package help

// ColdstartYAML is printed by the quickstart command.
const ColdstartYAML = `# llm-report Quick Start

setup:
  api_key: "export GEMINI_API_KEY=... (or put it in .env)"
  config: "config.yaml is optional; every key has a default"

run_kinds:
  factsheet: "Form fields -> prompt -> 1-5 generated versions -> documents"
  scrape: "URL -> fetch -> analytics -> content suggestions -> documents"
  analyze: "URL -> fetch -> analytics -> documents, no generation"
  fund: "Filled-in template -> optional commentary -> fund report"

formats: [pdf, docx, csv, xlsx, txt]

commands:
  factsheet: |
    llm-report factsheet -f product_name=Acme -f "description=Rocket skates" \
      -f "target_audience=Coyotes" -f "key_features=speed, noise" --variants 3 --format pdf

  catalogue_template: |
    llm-report factsheet --template faq --fields-file acme.yaml --format docx

  scrape: |
    llm-report scrape --url https://example.com --format pdf,xlsx

  seo_audit: |
    llm-report scrape --url https://example.com --template seo_audit --format txt

  analyze: |
    llm-report analyze --url https://example.com --output json

  fund_report: |
    llm-report fund template --format xlsx -o fund.xlsx
    llm-report fund report --input fund.xlsx --format pdf

  history: |
    llm-report --db runs.db runs list
    llm-report --db runs.db runs show <run-id>

  serve: |
    llm-report serve --addr :8080
    curl -XPOST localhost:8080/api/sessions
    curl -XPOST localhost:8080/api/sessions/<id>/runs -d '{"kind":"analyze","url":"https://example.com"}'

exit_codes:
  1: "invalid input (missing fields, bad url)"
  2: "a pipeline stage failed"

key_files:
  - "reports/<run-id>/ (generated artifacts)"
  - "config.yaml (generation, fetch, render, database, notify, server, session)"
`
