package app

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/ui/output"
	"go.trai.ch/matrix/internal/ui/style"
	"go.trai.ch/zerr"
)

// HistoryOptions configuration for the History method.
type HistoryOptions struct {
	SourceDir  string
	ConfigPath string
	// Limit caps the number of runs listed. Zero lists all runs.
	Limit int
}

// History prints the most recent runs, newest first.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	if opts.Limit < 0 {
		return zerr.With(zerr.New("limit must not be negative"), "limit", opts.Limit)
	}
	s, err := a.open(opts.SourceDir, opts.ConfigPath)
	if err != nil {
		return err
	}

	store, err := a.openHistory(ctx, s.def.History, s.stateDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	records, err := store.List(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.logger.Info("no runs recorded yet")
		return nil
	}

	_, err = io.WriteString(a.stdout, RenderHistory(a.stdout, records)+"\n")
	return err
}

// RenderHistory formats records as a table for w.
func RenderHistory(w io.Writer, records []domain.RunRecord) string {
	re := lipgloss.NewRenderer(w, termenv.WithProfile(output.ColorProfile()))
	cell := re.NewStyle().Padding(0, 1)
	header := cell.Bold(true).Foreground(style.Iris)

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			shortID(rec.ID),
			rec.StartedAt.Format(time.DateTime),
			rec.FinishedAt.Sub(rec.StartedAt).Round(time.Second).String(),
			rec.Provider,
			resultBadge(re, rec),
			entrySummary(re, rec.Entries),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(re.NewStyle().Foreground(style.Slate)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers("RUN", "STARTED", "DURATION", "PROVIDER", "RESULT", "ENTRIES").
		Rows(rows...)
	return t.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func resultBadge(re *lipgloss.Renderer, rec domain.RunRecord) string {
	if rec.Succeeded {
		return style.Badge(re, domain.StateSucceeded, "passed")
	}
	return style.Badge(re, domain.StateFailed, "failed")
}

func entrySummary(re *lipgloss.Renderer, entries []domain.EntryRecord) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, style.Badge(re, e.State, e.Version))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "  ")
}
