package main

import (
	"database/sql"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestReviewModelNavigationAndConfirm(t *testing.T) {
	m := newReviewModel("/tmp/mandi_app.db", "run-1", sampleReviewReport())
	m = updateReview(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})

	if m.cursor != 0 {
		t.Fatalf("cursor should start at 0, got %d", m.cursor)
	}
	m = updateReview(t, m, runeKey("k"))
	if m.cursor != 0 {
		t.Fatalf("cursor should clamp at top, got %d", m.cursor)
	}
	m = updateReview(t, m, runeKey("j"))
	m = updateReview(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 2 {
		t.Fatalf("cursor mismatch after moving down: got=%d want=2", m.cursor)
	}
	m = updateReview(t, m, runeKey("j"))
	if m.cursor != 2 {
		t.Fatalf("cursor should clamp at bottom, got %d", m.cursor)
	}
	m = updateReview(t, m, runeKey("g"))
	if m.cursor != 0 {
		t.Fatalf("g should jump to top, got %d", m.cursor)
	}
	m = updateReview(t, m, runeKey("G"))
	if m.cursor != 2 {
		t.Fatalf("G should jump to bottom, got %d", m.cursor)
	}

	view := m.View()
	for _, want := range []string{"grainfill review", "Bajra", "parsed: 2", "inferred: 1", "id=9"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(reviewModel)
	if m.phase != reviewConfirmed {
		t.Fatalf("enter should confirm, phase=%d", m.phase)
	}
	assertQuitCmd(t, cmd)
}

func TestReviewModelCancelKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{runeKey("n"), runeKey("q"), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		m := newReviewModel("/tmp/mandi_app.db", "run-1", sampleReviewReport())
		next, cmd := m.Update(key)
		m = next.(reviewModel)
		if m.phase != reviewCancelled {
			t.Fatalf("%s should cancel, phase=%d", key.String(), m.phase)
		}
		assertQuitCmd(t, cmd)
	}
}

func TestReviewModelNothingToApply(t *testing.T) {
	m := newReviewModel("/tmp/mandi_app.db", "run-1", backfillReport{found: 2, remaining: 2})
	m = updateReview(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	next, cmd := m.Update(runeKey("y"))
	m = next.(reviewModel)
	if m.phase != reviewBrowsing {
		t.Fatalf("empty review must not confirm, phase=%d", m.phase)
	}
	if cmd != nil {
		t.Fatalf("expected no command")
	}
	if !strings.Contains(m.View(), "No rows would change.") {
		t.Fatalf("unexpected view:\n%s", m.View())
	}
}

func TestChangesMatch(t *testing.T) {
	reviewed := sampleReviewReport().changes()

	same := sampleReviewReport().changes()
	if !changesMatch(reviewed, same) {
		t.Fatalf("identical plans should match")
	}

	regrained := sampleReviewReport().changes()
	regrained[2].grainType = "Gram"
	if changesMatch(reviewed, regrained) {
		t.Fatalf("different grain type should not match")
	}

	if changesMatch(reviewed, reviewed[:2]) {
		t.Fatalf("different lengths should not match")
	}

	resourced := sampleReviewReport().changes()
	resourced[1].source = sourceRate
	if changesMatch(reviewed, resourced) {
		t.Fatalf("different source should not match")
	}

	if !changesMatch(nil, []grainChange{}) {
		t.Fatalf("two empty plans should match")
	}
}

func sampleReviewReport() backfillReport {
	return backfillReport{
		found: 4,
		parsed: []grainChange{
			{id: int64(1), grainType: "Wheat", source: sourcePayload, description: sql.NullString{String: wheatPayloadDescription, Valid: true}, rate: rateOf(1910)},
			{id: int64(2), grainType: "Bajra", source: sourceText, description: sql.NullString{String: "Bajra: 12 bags × 50.5kg", Valid: true}, rate: rateOf(1800)},
		},
		inferred: []grainChange{
			{id: int64(9), grainType: "Wheat", source: sourceRate, rate: rateOf(1910)},
		},
		remaining: 1,
	}
}

func updateReview(t *testing.T, m reviewModel, msg tea.Msg) reviewModel {
	t.Helper()
	next, _ := m.Update(msg)
	updated, ok := next.(reviewModel)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return updated
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func assertQuitCmd(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}
