package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

type backfillOptions struct {
	dbPath     string
	exportPath string
	logLevel   string
}

// backfillReport collects what one pass resolved. parsed holds description
// matches, inferred holds rate matches, each in query order.
type backfillReport struct {
	found     int
	parsed    []grainChange
	inferred  []grainChange
	remaining int
}

func (r backfillReport) changes() []grainChange {
	out := make([]grainChange, 0, len(r.parsed)+len(r.inferred))
	out = append(out, r.parsed...)
	return append(out, r.inferred...)
}

// runBackfillCommand executes the default CLI path: backup, parse, infer,
// report.
func runBackfillCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseBackfillArgs(args)
	if err != nil {
		return err
	}

	ctx, _, err = newRunContext(ctx, stderr, opts.logLevel)
	if err != nil {
		return err
	}

	report, err := executeBackfill(ctx, opts.dbPath, stdout)
	if err != nil {
		return err
	}

	if opts.exportPath != "" {
		if err := exportChangeReport(opts.exportPath, report.changes()); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Change report written: %s\n", opts.exportPath)
	}
	fmt.Fprintln(stdout, "Done.")
	return nil
}

// executeBackfill opens the database, takes the backup and runs the two-phase
// workflow. The backup is written before any row is touched.
func executeBackfill(ctx context.Context, dbPath string, out io.Writer) (backfillReport, error) {
	log := loggerFromContext(ctx)

	db, err := openMandiDB(dbPath)
	if err != nil {
		return backfillReport{}, err
	}
	defer db.Close()

	if err := checkSellTransactionsSchema(ctx, db); err != nil {
		return backfillReport{}, err
	}

	backupPath, size, err := backupDatabase(dbPath)
	if err != nil {
		return backfillReport{}, err
	}
	fmt.Fprintf(out, "Backup created: %s (%s)\n", backupPath, humanize.Bytes(uint64(size)))
	log.Info().Str("db", dbPath).Str("backup", backupPath).Int64("bytes", size).Msg("backup written")

	report, err := runBackfillWorkflow(ctx, db, out)
	if err != nil {
		return backfillReport{}, err
	}
	log.Info().
		Int("found", report.found).
		Int("parsed", len(report.parsed)).
		Int("inferred", len(report.inferred)).
		Int("remaining", report.remaining).
		Msg("backfill finished")
	return report, nil
}

// runBackfillWorkflow applies description matches in one committed batch,
// then rate inference in a second. The two commits are independent: a failure
// in the second leaves the first applied, and a re-run picks up from there.
func runBackfillWorkflow(ctx context.Context, db *sql.DB, out io.Writer) (backfillReport, error) {
	var report backfillReport

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		found, parsed, err := collectParsedChanges(ctx, tx)
		if err != nil {
			return err
		}
		report.found = found
		report.parsed = parsed
		fmt.Fprintf(out, "Found %d sell rows with empty grain_type\n", found)
		fmt.Fprintf(out, "Parsed grainType for %d rows; applying updates...\n", len(parsed))
		return applyGrainChanges(ctx, tx, parsed)
	})
	if err != nil {
		return backfillReport{}, err
	}
	fmt.Fprintln(out, "Updates applied. Committed to DB.")

	err = withTx(ctx, db, func(tx *sql.Tx) error {
		inferred, err := inferRemainingChanges(ctx, tx)
		if err != nil {
			return err
		}
		report.inferred = inferred
		return nil
	})
	if err != nil {
		return backfillReport{}, err
	}
	fmt.Fprintf(out, "Inferred grainType for %d rows using rate-matching.\n", len(report.inferred))

	remaining, err := countEmptyGrainRows(ctx, db)
	if err != nil {
		return backfillReport{}, err
	}
	report.remaining = remaining

	printChangedRows(out, report.changes())
	return report, nil
}

// collectParsedChanges selects rows with an empty grain_type and resolves the
// ones whose description carries a grain. It returns the number of empty rows
// found and the resolved changes.
func collectParsedChanges(ctx context.Context, q sqlQueryer) (int, []grainChange, error) {
	log := loggerFromContext(ctx)

	rows, err := loadEmptyGrainRows(ctx, q)
	if err != nil {
		return 0, nil, err
	}

	var changes []grainChange
	for _, row := range rows {
		if !row.description.Valid || row.description.String == "" {
			continue
		}
		grain, source, ok := resolveGrainFromDescription(ctx, row.description.String)
		if !ok {
			log.Debug().Str("id", formatRowID(row.id)).Msg("description did not resolve")
			continue
		}
		log.Debug().Str("id", formatRowID(row.id)).Str("grain_type", grain).Str("source", string(source)).Msg("parsed from description")
		changes = append(changes, grainChange{
			id:          row.id,
			grainType:   grain,
			source:      source,
			description: row.description,
			rate:        row.rate,
			quantity:    row.quantity,
		})
	}
	return len(rows), changes, nil
}

func applyGrainChanges(ctx context.Context, q sqlQueryer, changes []grainChange) error {
	for _, change := range changes {
		if err := updateGrainType(ctx, q, change.id, change.grainType); err != nil {
			return err
		}
	}
	return nil
}

func printChangedRows(out io.Writer, changes []grainChange) {
	for _, change := range changes {
		fmt.Fprintln(out, formatChangeTuple(change))
	}
}

// withTx runs fn in a transaction, committing on success and rolling back on
// any error.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	rollback := true
	defer func() {
		if rollback {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	rollback = false
	return nil
}

func parseBackfillArgs(args []string) (backfillOptions, error) {
	fs := flag.NewFlagSet("grainfill", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	exportPath := fs.String("export", "", "write the change report to an .xlsx workbook")
	logLevel := fs.String("log-level", "", "diagnostic log level (debug, info, warn, error)")

	normalized, err := normalizeBackfillArgs(args, map[string]bool{
		"--export":    true,
		"--log-level": true,
	})
	if err != nil {
		return backfillOptions{}, fmt.Errorf("%w\n%s", err, backfillUsageText())
	}
	if err := fs.Parse(normalized); err != nil {
		return backfillOptions{}, fmt.Errorf("%w\n%s", err, backfillUsageText())
	}
	if fs.NArg() > 1 {
		return backfillOptions{}, fmt.Errorf("at most one database path may be given\n%s", backfillUsageText())
	}

	opts := backfillOptions{
		dbPath:     resolveDBPath(fs.Arg(0)),
		exportPath: expandHomePath(*exportPath),
		logLevel:   resolveLogLevel(*logLevel),
	}
	if opts.exportPath != "" && !strings.HasSuffix(strings.ToLower(opts.exportPath), ".xlsx") {
		return backfillOptions{}, errors.New("--export path must end in .xlsx")
	}
	return opts, nil
}

// normalizeBackfillArgs moves positionals after flags so the database path may
// appear anywhere on the command line. takesValue lists flags that consume the
// following argument.
func normalizeBackfillArgs(args []string, takesValue map[string]bool) ([]string, error) {
	flags := make([]string, 0, len(args))
	positionals := make([]string, 0, 1)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if takesValue[arg] {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			flags = append(flags, arg, args[i+1])
			i++
			continue
		}
		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			continue
		}
		positionals = append(positionals, arg)
	}
	return append(flags, positionals...), nil
}

func backfillUsageText() string {
	return strings.TrimSpace(`
Usage:
  grainfill [db_path] [--export report.xlsx] [--log-level level]
  grainfill plan [db_path] [--export report.xlsx]
  grainfill review [db_path]

Backfill sell_transactions.grain_type. Each empty row is resolved from its
BillOfSupplyItems payload, then from a "<grain>: N bags x Wkg" description.
Rows still empty after that take the most common grain_type among rows with
the same rate_per_quintal (within 0.001). Rate inference sees rows filled
earlier in the same run, including earlier inferred rows. Blank or
non-numeric rate_per_quintal and quantity values are treated as NULL.

review re-plans when you confirm. If the database changed while the review
screen was open, the applied changes can differ and a warning is printed.

The database is copied to <db_path>.bak before any change.
db_path defaults to $GRAINFILL_DB_PATH, then /tmp/mandi_app.db.

Flags:
  --export <file.xlsx>   write changed rows to a workbook
  --log-level <level>    diagnostics on stderr (default warn; env GRAINFILL_LOG_LEVEL)
`)
}
