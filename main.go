package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	headerStyle   = lipgloss.NewStyle().Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))

	sourcePayloadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	sourceTextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	sourceRateStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

func main() {
	if err := loadEnvFile(defaultEnvFile); err != nil {
		fmt.Fprintf(os.Stderr, "grainfill failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if len(os.Args) > 1 && os.Args[1] == "plan" {
		if err := runPlanCommand(ctx, os.Args[2:], os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "grainfill plan failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "review" {
		if err := runReviewCommand(ctx, os.Args[2:], os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "grainfill review failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(os.Args) > 1 && isHelpArg(os.Args[1]) {
		fmt.Println(backfillUsageText())
		return
	}

	if err := runBackfillCommand(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "grainfill failed: %v\n", err)
		os.Exit(1)
	}
}

func isHelpArg(arg string) bool {
	switch arg {
	case "help", "-h", "--help":
		return true
	default:
		return false
	}
}

func sourceStyle(source grainSource) lipgloss.Style {
	switch source {
	case sourcePayload:
		return sourcePayloadStyle
	case sourceText:
		return sourceTextStyle
	case sourceRate:
		return sourceRateStyle
	default:
		return helpStyle
	}
}

func oneLine(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	return strings.Join(strings.Fields(trimmed), " ")
}

func truncateString(text string, width int) string {
	if width <= 0 {
		return ""
	}
	return truncate.StringWithTail(text, uint(width), "...")
}

func wrapText(text string, width int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	wrapped := wordwrap.String(trimmed, width)
	return strings.ReplaceAll(wrapped, "\r", "")
}

func listOffset(cursor, total, visible int) int {
	if total <= visible {
		return 0
	}
	offset := cursor - visible/2
	maxOffset := total - visible
	return clamp(offset, 0, maxOffset)
}

func clamp(value, low, high int) int {
	if high < low {
		return low
	}
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
