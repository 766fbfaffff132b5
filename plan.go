package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

type planOptions struct {
	dbPath     string
	exportPath string
	logLevel   string
}

var errPlanRollback = errors.New("plan rollback")

// runPlanCommand shows what a run would change without writing anything.
func runPlanCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parsePlanArgs(args)
	if err != nil {
		return err
	}

	ctx, runID, err := newRunContext(ctx, stderr, opts.logLevel)
	if err != nil {
		return err
	}

	db, err := openMandiDB(opts.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := checkSellTransactionsSchema(ctx, db); err != nil {
		return err
	}

	report, err := buildBackfillPlan(ctx, db)
	if err != nil {
		return err
	}
	printPlanReport(stdout, opts.dbPath, runID, report)

	if opts.exportPath != "" {
		if err := exportChangeReport(opts.exportPath, report.changes()); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Change report written: %s\n", opts.exportPath)
	}
	return nil
}

// buildBackfillPlan runs both phases inside a single transaction that is
// always rolled back. Inference therefore sees the parsed rows exactly as a
// real run would, but nothing is persisted.
func buildBackfillPlan(ctx context.Context, db *sql.DB) (backfillReport, error) {
	var report backfillReport

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		found, parsed, err := collectParsedChanges(ctx, tx)
		if err != nil {
			return err
		}
		if err := applyGrainChanges(ctx, tx, parsed); err != nil {
			return err
		}
		inferred, err := inferRemainingChanges(ctx, tx)
		if err != nil {
			return err
		}
		remaining, err := countEmptyGrainRows(ctx, tx)
		if err != nil {
			return err
		}
		report = backfillReport{
			found:     found,
			parsed:    parsed,
			inferred:  inferred,
			remaining: remaining,
		}
		return errPlanRollback
	})
	if err != nil && !errors.Is(err, errPlanRollback) {
		return backfillReport{}, err
	}
	return report, nil
}

func printPlanReport(out io.Writer, dbPath, runID string, report backfillReport) {
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Dry run %s against %s", runID, dbPath)))
	fmt.Fprintf(out, "Found %d sell rows with empty grain_type\n", report.found)

	counts := map[grainSource]int{}
	for _, change := range report.changes() {
		counts[change.source]++
	}
	fmt.Fprintf(out, "Would parse grainType for %d rows (%d payload, %d text)\n",
		len(report.parsed), counts[sourcePayload], counts[sourceText])
	fmt.Fprintf(out, "Would infer grainType for %d rows using rate-matching\n", len(report.inferred))
	fmt.Fprintf(out, "Would leave %d rows empty\n", report.remaining)

	if len(report.parsed)+len(report.inferred) > 0 {
		fmt.Fprintln(out)
	}
	for _, change := range report.changes() {
		label := sourceStyle(change.source).Render(fmt.Sprintf("%-7s", change.source))
		fmt.Fprintf(out, "  %s %s\n", label, formatChangeTuple(change))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, `Run without "plan" to apply.`)
}

func parsePlanArgs(args []string) (planOptions, error) {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	exportPath := fs.String("export", "", "write the planned changes to an .xlsx workbook")
	logLevel := fs.String("log-level", "", "diagnostic log level (debug, info, warn, error)")

	normalized, err := normalizeBackfillArgs(args, map[string]bool{
		"--export":    true,
		"--log-level": true,
	})
	if err != nil {
		return planOptions{}, fmt.Errorf("%w\n%s", err, backfillUsageText())
	}
	if err := fs.Parse(normalized); err != nil {
		return planOptions{}, fmt.Errorf("%w\n%s", err, backfillUsageText())
	}
	if fs.NArg() > 1 {
		return planOptions{}, fmt.Errorf("at most one database path may be given\n%s", backfillUsageText())
	}

	opts := planOptions{
		dbPath:     resolveDBPath(fs.Arg(0)),
		exportPath: expandHomePath(*exportPath),
		logLevel:   resolveLogLevel(*logLevel),
	}
	if opts.exportPath != "" && !strings.HasSuffix(strings.ToLower(opts.exportPath), ".xlsx") {
		return planOptions{}, errors.New("--export path must end in .xlsx")
	}
	return opts, nil
}
