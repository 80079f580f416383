package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/tablestakes/tracker/internal/domain"
)

const (
	backupVersion = 1
	backupAppName = "tablestakes-tracker"
)

// Backup is the portable JSON snapshot of the full session collection.
type Backup struct {
	Version    int                    `json:"version"`
	ExportDate time.Time              `json:"exportDate"`
	Games      []domain.SessionRecord `json:"games"`
	GameCount  int                    `json:"gameCount"`
	AppName    string                 `json:"appName"`
}

// ExportBackup snapshots every stored session into a restorable backup.
// Only local sessions are included; the mirror keeps its own copy.
func (t *Tracker) ExportBackup(ctx context.Context) (*Backup, error) {
	sessions, err := t.sessions.List(ctx, t.db)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return &Backup{
		Version:    backupVersion,
		ExportDate: time.Now().UTC(),
		Games:      sessions,
		GameCount:  len(sessions),
		AppName:    backupAppName,
	}, nil
}

// ImportBackup replaces the full session collection with the backup contents.
// Sessions sharing a session ID within the backup are collapsed to the first
// occurrence. Returns the number of sessions restored.
func (t *Tracker) ImportBackup(ctx context.Context, backup *Backup) (int, error) {
	if backup == nil || backup.Games == nil {
		return 0, domain.ErrValidation("invalid backup file format")
	}
	for i := range backup.Games {
		if backup.Games[i].SessionID == "" {
			return 0, domain.ErrValidation(fmt.Sprintf("backup game %d has no session id", i))
		}
		if len(backup.Games[i].Players) == 0 {
			return 0, domain.ErrValidation(fmt.Sprintf("backup game %q has no players", backup.Games[i].SessionID))
		}
	}

	if err := t.ClearAll(ctx); err != nil {
		return 0, err
	}

	restored := 0
	for i := range backup.Games {
		session := backup.Games[i]
		if session.AddedAt.IsZero() {
			session.AddedAt = time.Now().UTC()
		}
		if err := t.sessions.Insert(ctx, t.db, &session); err != nil {
			var appErr *domain.AppError
			if errors.As(err, &appErr) && appErr.Code == "CONFLICT" {
				continue
			}
			return restored, fmt.Errorf("restore session %s: %w", session.SessionID, err)
		}
		restored++
	}
	return restored, nil
}

// ExportReportCSV renders the cross-session report as a spreadsheet-friendly
// CSV: UTF-8 BOM, CRLF line endings, player totals followed by the settlement
// plan. Monetary columns are formatted in the configured currency.
func (t *Tracker) ExportReportCSV(ctx context.Context) ([]byte, error) {
	stats, err := t.PlayerStats(ctx)
	if err != nil {
		return nil, err
	}
	settlements, err := t.Settlements(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("\uFEFF")
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	rows := [][]string{
		{"Poker Session Report"},
		{"Generated", time.Now().UTC().Format(time.RFC3339)},
		{"Sessions", strconv.Itoa(stats.SessionCount)},
		{},
		{"Player", "Games", "Wins", "Win Rate", "Net", "Rounded"},
	}
	for _, p := range stats.Players {
		rows = append(rows, []string{
			p.FullName,
			strconv.Itoa(p.GamesPlayed),
			strconv.Itoa(p.Wins),
			fmt.Sprintf("%.1f%%", p.WinRate),
			t.formatMoney(p.TotalNet),
			strconv.FormatInt(p.RoundedValue, 10),
		})
	}

	rows = append(rows, []string{}, []string{"Settlements"}, []string{"From", "To", "Amount", "Status"})
	for _, s := range settlements {
		rows = append(rows, []string{s.From, s.To, t.formatMoney(s.Amount), string(s.Status)})
	}

	rows = append(rows, []string{}, []string{"Balance Check", t.formatMoney(stats.Balance)})

	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write report csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *Tracker) formatMoney(minor int64) string {
	return money.New(minor, t.currency).Display()
}
