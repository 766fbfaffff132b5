package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type reviewOptions struct {
	dbPath   string
	logLevel string
}

type reviewPhase int

const (
	reviewBrowsing reviewPhase = iota
	reviewConfirmed
	reviewCancelled
)

// reviewModel lists the planned grain_type changes and waits for a yes/no.
// It never writes; the caller applies the run after a confirmed exit.
type reviewModel struct {
	dbPath  string
	runID   string
	report  backfillReport
	changes []grainChange

	cursor int
	detail viewport.Model
	width  int
	height int

	phase  reviewPhase
	status string
}

// runReviewCommand plans the backfill, shows it in a TUI, and runs it for real
// only when the user confirms.
func runReviewCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseReviewArgs(args)
	if err != nil {
		return err
	}

	ctx, runID, err := newRunContext(ctx, stderr, opts.logLevel)
	if err != nil {
		return err
	}

	report, err := loadReviewPlan(ctx, opts.dbPath)
	if err != nil {
		return err
	}

	program := tea.NewProgram(newReviewModel(opts.dbPath, runID, report), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("run review: %w", err)
	}

	result, ok := final.(reviewModel)
	if !ok || result.phase != reviewConfirmed {
		fmt.Fprintln(stdout, "Review cancelled. No changes written.")
		return nil
	}

	applied, err := executeBackfill(ctx, opts.dbPath, stdout)
	if err != nil {
		return err
	}
	if !changesMatch(result.changes, applied.changes()) {
		fmt.Fprintf(stdout, "Warning: database changed during review; applied %d change(s), reviewed %d.\n",
			len(applied.changes()), len(result.changes))
	}
	fmt.Fprintln(stdout, "Done.")
	return nil
}

// changesMatch reports whether two change lists update the same rows to the
// same grain types from the same sources, in the same order.
func changesMatch(reviewed, applied []grainChange) bool {
	if len(reviewed) != len(applied) {
		return false
	}
	for i := range reviewed {
		if formatRowID(reviewed[i].id) != formatRowID(applied[i].id) ||
			reviewed[i].grainType != applied[i].grainType ||
			reviewed[i].source != applied[i].source {
			return false
		}
	}
	return true
}

func loadReviewPlan(ctx context.Context, dbPath string) (backfillReport, error) {
	db, err := openMandiDB(dbPath)
	if err != nil {
		return backfillReport{}, err
	}
	defer db.Close()

	if err := checkSellTransactionsSchema(ctx, db); err != nil {
		return backfillReport{}, err
	}
	return buildBackfillPlan(ctx, db)
}

func newReviewModel(dbPath, runID string, report backfillReport) reviewModel {
	m := reviewModel{
		dbPath:  dbPath,
		runID:   runID,
		report:  report,
		changes: report.changes(),
	}
	if len(m.changes) == 0 {
		m.status = "Nothing to backfill. Press q to quit."
	} else {
		m.status = fmt.Sprintf("%d change(s) planned", len(m.changes))
	}
	return m
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeDetail()
		m.refreshDetail()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m reviewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "n", "esc":
		m.phase = reviewCancelled
		return m, tea.Quit
	case "y", "enter":
		if len(m.changes) == 0 {
			m.status = "Nothing to apply"
			return m, nil
		}
		m.phase = reviewConfirmed
		m.status = "Applying..."
		return m, tea.Quit
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, len(m.changes)-1)
		m.refreshDetail()
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, len(m.changes)-1)
		m.refreshDetail()
	case "g":
		m.cursor = 0
		m.refreshDetail()
	case "G":
		m.cursor = clamp(len(m.changes)-1, 0, len(m.changes)-1)
		m.refreshDetail()
	case "K":
		m.detail.LineUp(1)
	case "J":
		m.detail.LineDown(1)
	}
	return m, nil
}

func (m reviewModel) currentChange() (grainChange, bool) {
	if len(m.changes) == 0 || m.cursor < 0 || m.cursor >= len(m.changes) {
		return grainChange{}, false
	}
	return m.changes[m.cursor], true
}

func (m reviewModel) listHeight() int {
	return max(3, (m.height-6)/2)
}

func (m *reviewModel) resizeDetail() {
	width := max(20, m.width-2)
	height := max(3, m.height-m.listHeight()-6)
	if m.detail.Width == 0 {
		m.detail = viewport.New(width, height)
		return
	}
	m.detail.Width = width
	m.detail.Height = height
}

func (m *reviewModel) refreshDetail() {
	if m.detail.Width <= 0 || m.detail.Height <= 0 {
		return
	}
	change, ok := m.currentChange()
	if !ok {
		m.detail.SetContent("No change selected")
		m.detail.GotoTop()
		return
	}
	desc := "(no description)"
	if change.description.Valid && strings.TrimSpace(change.description.String) != "" {
		desc = wrapText(change.description.String, max(20, m.detail.Width-2))
	}
	lines := []string{
		fmt.Sprintf("id=%s  grain_type=%s  source=%s", formatRowID(change.id), change.grainType, change.source),
		fmt.Sprintf("rate_per_quintal=%s  quantity=%s", formatNullDecimal(change.rate), formatNullDecimal(change.quantity)),
		"",
		desc,
	}
	m.detail.SetContent(strings.Join(lines, "\n"))
	m.detail.GotoTop()
}

func (m reviewModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Initializing grainfill review..."
	}
	title := titleStyle.Render(fmt.Sprintf("grainfill review | %s | run %s", m.dbPath, m.runID))
	summary := fmt.Sprintf("empty rows: %d  parsed: %d  inferred: %d  left empty: %d",
		m.report.found, len(m.report.parsed), len(m.report.inferred), m.report.remaining)
	help := helpStyle.Render("up/down: move | g/G: top/bottom | J/K: scroll detail | y/enter: apply (re-plans on apply) | n/esc/q: cancel")
	return strings.Join([]string{
		title,
		summary,
		m.renderChanges(),
		"",
		m.detail.View(),
		help,
		helpStyle.Render(m.status),
	}, "\n")
}

func (m reviewModel) renderChanges() string {
	if len(m.changes) == 0 {
		return "No rows would change."
	}
	visible := m.listHeight()
	offset := listOffset(m.cursor, len(m.changes), visible)
	previewWidth := max(10, m.width-48)

	lines := make([]string, 0, visible)
	for idx := offset; idx < min(len(m.changes), offset+visible); idx++ {
		change := m.changes[idx]
		body := fmt.Sprintf("%-8s %-7s %-14s %10s  %s",
			truncateString(formatRowID(change.id), 8),
			change.source,
			truncateString(change.grainType, 14),
			formatNullDecimal(change.rate),
			truncateString(oneLine(change.description.String), previewWidth),
		)
		if idx == m.cursor {
			lines = append(lines, selectedStyle.Render("> "+body))
			continue
		}
		lines = append(lines, "  "+body)
	}
	return strings.Join(lines, "\n")
}

func parseReviewArgs(args []string) (reviewOptions, error) {
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	logLevel := fs.String("log-level", "", "diagnostic log level (debug, info, warn, error)")

	normalized, err := normalizeBackfillArgs(args, map[string]bool{"--log-level": true})
	if err != nil {
		return reviewOptions{}, fmt.Errorf("%w\n%s", err, backfillUsageText())
	}
	if err := fs.Parse(normalized); err != nil {
		return reviewOptions{}, fmt.Errorf("%w\n%s", err, backfillUsageText())
	}
	if fs.NArg() > 1 {
		return reviewOptions{}, fmt.Errorf("at most one database path may be given\n%s", backfillUsageText())
	}
	return reviewOptions{
		dbPath:   resolveDBPath(fs.Arg(0)),
		logLevel: resolveLogLevel(*logLevel),
	}, nil
}
