package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/logging"
	"github.com/cloudx-io/opentender/report"
	"github.com/cloudx-io/opentender/tenderapi"
)

const (
	exitOK         = 0
	exitEvaluation = 1
	exitInput      = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	request   string
	tender    string
	params    string
	failures  string
	format    string
	xlsxPath  string
	pdfPath   string
	title     string
	logLevel  string
	logFormat string
	quiet     bool
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tender-eval", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { showUsage(stderr) }

	var opts options
	fs.StringVar(&opts.request, "request", "", "Full evaluation_request JSON (file path or inline)")
	fs.StringVar(&opts.tender, "tender", "", "Tender JSON (file path or inline)")
	fs.StringVar(&opts.params, "params", "", "Evaluation parameters JSON (file path or inline)")
	fs.StringVar(&opts.failures, "failures", "", "Optional phase A failure records JSON (file path or inline)")
	fs.StringVar(&opts.format, "format", "text", "Output format: text or json")
	fs.StringVar(&opts.xlsxPath, "xlsx", "", "Write the results workbook to this path")
	fs.StringVar(&opts.pdfPath, "pdf", "", "Write the PDF report to this path")
	fs.StringVar(&opts.title, "title", "", "Report title (default: tender name)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&opts.logFormat, "log-format", "console", "Log format: console or json")
	fs.BoolVar(&opts.quiet, "quiet", false, "Disable logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitInput
	}

	if opts.format != "text" && opts.format != "json" {
		fmt.Fprintf(stderr, "Error: --format must be text or json, got %q\n", opts.format)
		return exitInput
	}

	logger := logging.Nop()
	if !opts.quiet {
		var err error
		logger, err = logging.New(opts.logLevel, opts.logFormat)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitInput
		}
	}
	defer func() { _ = logger.Sync() }()

	req, err := loadRequest(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading input: %v\n", err)
		return exitInput
	}

	ev, params, err := core.EvaluateRaw(req.Tender, req.Parameters, req.PhaseAFailures)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitEvaluation
	}
	logging.Evaluation(logger, params, ev)
	logger.Info("evaluation complete",
		zap.String("tender_id", req.Tender.ID),
		zap.String("method", params.Method.String()),
		zap.Int("lots", len(ev.Lots)),
		zap.Int("winners", ev.WinnerCount()))

	summary := newSummary(req.Tender, params, ev)
	if opts.format == "json" {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "Error marshaling JSON: %v\n", err)
			return exitInput
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		writeText(stdout, summary)
	}

	title := opts.title
	if title == "" {
		title = req.Tender.Name
	}
	if opts.xlsxPath != "" {
		data, err := report.GenerateWorkbook(title, ev)
		if err := writeReport(opts.xlsxPath, data, err); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitInput
		}
		logger.Info("workbook written", zap.String("path", opts.xlsxPath))
	}
	if opts.pdfPath != "" {
		data, err := report.GeneratePDF(title, ev)
		if err := writeReport(opts.pdfPath, data, err); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitInput
		}
		logger.Info("pdf written", zap.String("path", opts.pdfPath))
	}
	return exitOK
}

func showUsage(w io.Writer) {
	fmt.Fprintln(w, "Tender Evaluation")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Evaluates the offers of a tender lot by lot and allocates winners.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tender-eval --tender <json> --params <json> [options]")
	fmt.Fprintln(w, "  tender-eval --request <json> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --failures <json>        Phase A failure records; document_id -1 disqualifies")
	fmt.Fprintln(w, "  --format <text|json>     Output format (default: text)")
	fmt.Fprintln(w, "  --xlsx <path>            Write the results workbook")
	fmt.Fprintln(w, "  --pdf <path>             Write the PDF report")
	fmt.Fprintln(w, "  --title <title>          Report title (default: tender name)")
	fmt.Fprintln(w, "  --log-level <level>      debug, info, warn, error (default: info)")
	fmt.Fprintln(w, "  --log-format <format>    console or json (default: console)")
	fmt.Fprintln(w, "  --quiet                  Disable logging")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Each JSON flag accepts either a file path or the value inline.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit Codes:")
	fmt.Fprintln(w, "  0 - Evaluation completed")
	fmt.Fprintln(w, "  1 - Invalid parameters or evaluation error")
	fmt.Fprintln(w, "  2 - Invalid input or runtime error")
}

func readInput(input string) []byte {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data
	}
	return []byte(input)
}

func loadRequest(opts options) (tenderapi.EvaluationRequest, error) {
	var req tenderapi.EvaluationRequest

	if opts.request != "" {
		data := readInput(opts.request)
		if err := tenderapi.ValidateEvaluationRequest(data); err != nil {
			return req, err
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("parse request: %w", err)
		}
		return req, nil
	}

	if opts.tender == "" || opts.params == "" {
		return req, errors.New("--tender and --params are required unless --request is given")
	}
	if err := json.Unmarshal(readInput(opts.tender), &req.Tender); err != nil {
		return req, fmt.Errorf("parse tender: %w", err)
	}
	if err := json.Unmarshal(readInput(opts.params), &req.Parameters); err != nil {
		return req, fmt.Errorf("parse params: %w", err)
	}
	if opts.failures != "" {
		if err := json.Unmarshal(readInput(opts.failures), &req.PhaseAFailures); err != nil {
			return req, fmt.Errorf("parse failures: %w", err)
		}
	}
	return req, nil
}

func writeReport(path string, data []byte, genErr error) error {
	if genErr != nil {
		return genErr
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type packages struct {
	Individual        core.IndividualPackage `json:"best_individual"`
	BestBidder        *core.BidderPackage    `json:"best_bidder,omitempty"`
	PercentDifference float64                `json:"percent_difference"`
}

type summary struct {
	TenderID         string                `json:"tender_id"`
	Method           string                `json:"method"`
	LotOrder         []string              `json:"lot_order"`
	Lots             core.LotResults       `json:"lots"`
	Winners          map[string]string     `json:"winners"`
	Duplicates       []core.DuplicateOffer `json:"duplicates,omitempty"`
	ResultsDigest    string                `json:"results_digest"`
	ParametersDigest string                `json:"parameters_digest"`
	Packages         packages              `json:"packages"`
}

func newSummary(tender core.Tender, params core.EvaluationParameters, ev *core.Evaluation) summary {
	return summary{
		TenderID:         tender.ID,
		Method:           params.Method.String(),
		LotOrder:         ev.LotOrder,
		Lots:             ev.Lots,
		Winners:          ev.Lots.Winners(),
		Duplicates:       ev.Duplicates,
		ResultsDigest:    core.ComputeResultsDigest(ev.Lots),
		ParametersDigest: core.ComputeParametersDigest(params),
		Packages: packages{
			Individual:        core.BestIndividualPackage(tender),
			BestBidder:        core.BestBidderPackage(tender),
			PercentDifference: core.PercentDifference(tender, true, false),
		},
	}
}

func writeText(w io.Writer, s summary) {
	line := strings.Repeat("=", 40)
	fmt.Fprintln(w, "Tender Evaluation")
	fmt.Fprintln(w, line)
	if s.TenderID != "" {
		fmt.Fprintf(w, "Tender:  %s\n", s.TenderID)
	}
	fmt.Fprintf(w, "Method:  %s\n", s.Method)
	fmt.Fprintf(w, "Awarded: %d of %d lots\n", len(s.Winners), len(s.LotOrder))
	fmt.Fprintln(w)

	for _, lotID := range s.LotOrder {
		rows := s.Lots[lotID]
		if winner, ok := core.Winner(rows); ok {
			fmt.Fprintf(w, "Lot %s: %s (%.2f, score %.2f)\n", lotID, winner.Participant.Name, winner.Amount, winner.FinalScore)
		} else {
			fmt.Fprintf(w, "Lot %s: no winner\n", lotID)
		}
		for i, r := range rows {
			mark := " "
			switch {
			case r.IsWinner:
				mark = "*"
			case !r.Qualifies:
				mark = "x"
			}
			fmt.Fprintf(w, "  %s %d. %-30s %12.2f  tech %6.2f  eco %6.2f  final %6.2f\n",
				mark, i+1, r.Participant.Name, r.Amount, r.TechnicalScore, r.EconomicScore, r.FinalScore)
		}
	}

	if len(s.Duplicates) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Duplicate offers discarded: %d\n", len(s.Duplicates))
		for _, d := range s.Duplicates {
			fmt.Fprintf(w, "  - lot %s, %s: kept %.2f, discarded %.2f\n", d.LotID, d.Participant, d.KeptValue, d.DiscardedValue)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Packages:")
	fmt.Fprintf(w, "  Best individual total:   %.2f\n", s.Packages.Individual.Total)
	if b := s.Packages.BestBidder; b != nil {
		fmt.Fprintf(w, "  Best complete bidder:    %s (%.2f)\n", b.Participant, b.Total)
	} else {
		fmt.Fprintln(w, "  Best complete bidder:    none")
	}
	fmt.Fprintf(w, "  Own offer vs base:       %.2f%%\n", s.Packages.PercentDifference)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Results digest:    %s\n", s.ResultsDigest)
	fmt.Fprintf(w, "Parameters digest: %s\n", s.ParametersDigest)
}
