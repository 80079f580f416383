package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tablestakes/tracker/internal/domain"
	"github.com/tablestakes/tracker/internal/ledger"
	"github.com/tablestakes/tracker/internal/provider"
	"github.com/tablestakes/tracker/internal/repository"
)

// Tracker orchestrates the session collection: ledger ingestion, cross-session
// statistics, settlements and their advisory statuses, mirror sync, and
// backup/restore. Statistics and settlements are recomputed from the full
// session collection on every call; nothing incremental is kept.
type Tracker struct {
	db       repository.DBTX
	sessions repository.SessionRepository
	statuses repository.SettlementStatusRepository
	mirror   *provider.MirrorClient
	resolver *ledger.AliasResolver
	currency string
	logger   *slog.Logger
}

// NewTracker creates the tracker service.
func NewTracker(
	db repository.DBTX,
	sessions repository.SessionRepository,
	statuses repository.SettlementStatusRepository,
	mirror *provider.MirrorClient,
	resolver *ledger.AliasResolver,
	currency string,
	logger *slog.Logger,
) *Tracker {
	return &Tracker{
		db:       db,
		sessions: sessions,
		statuses: statuses,
		mirror:   mirror,
		resolver: resolver,
		currency: currency,
		logger:   logger,
	}
}

// ImportStatus is the outcome of importing one ledger file.
type ImportStatus string

const (
	ImportSaved     ImportStatus = "saved"
	ImportDuplicate ImportStatus = "duplicate"
)

// ImportResult describes what happened to an uploaded ledger.
type ImportResult struct {
	Status  ImportStatus          `json:"status"`
	Session *domain.SessionRecord `json:"session,omitempty"`
}

// ImportLedger parses and analyzes one raw ledger export and stores the
// resulting session. Duplicates are detected by session ID first, then by the
// (date, winner, total pot) triple for uploads lacking a natural ID; a
// duplicate is skipped, not an error. The stored session is mirrored
// best-effort when a mirror is configured.
func (t *Tracker) ImportLedger(ctx context.Context, filename, raw string) (*ImportResult, error) {
	rows, err := ledger.Parse(raw)
	if err != nil {
		return nil, err
	}

	session, err := ledger.Analyze(rows, t.resolver)
	if err != nil {
		return nil, err
	}
	session.SessionID = sessionIDFrom(filename)
	session.AddedAt = time.Now().UTC()

	existing, err := t.sessions.FindBySessionID(ctx, t.db, session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("check session id: %w", err)
	}
	if existing == nil {
		existing, err = t.sessions.FindDuplicate(ctx, t.db, session.Date, session.WinnerName, session.TotalPot)
		if err != nil {
			return nil, fmt.Errorf("check duplicate session: %w", err)
		}
	}
	if existing != nil {
		return &ImportResult{Status: ImportDuplicate, Session: existing}, nil
	}

	if err := t.sessions.Insert(ctx, t.db, session); err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) && appErr.Code == "CONFLICT" {
			return &ImportResult{Status: ImportDuplicate, Session: session}, nil
		}
		return nil, fmt.Errorf("save session: %w", err)
	}

	if t.mirror.Enabled() {
		if _, err := t.mirror.UploadSession(ctx, *session); err != nil {
			t.logger.Warn("mirror upload failed", "session_id", session.SessionID, "error", err)
		}
	}

	return &ImportResult{Status: ImportSaved, Session: session}, nil
}

// sessionIDFrom derives a session ID from the upload filename; a blank
// filename gets a generated time+random token.
func sessionIDFrom(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSpace(base)
	if base == "" || base == "." {
		return fmt.Sprintf("game_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	}
	return base
}

// Sessions returns the full session collection: local sessions merged with
// mirror sessions, deduped by session ID. A mirror failure degrades to the
// local view.
func (t *Tracker) Sessions(ctx context.Context) ([]domain.SessionRecord, error) {
	local, err := t.sessions.List(ctx, t.db)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	if !t.mirror.Enabled() {
		return local, nil
	}

	remote, err := t.mirror.FetchSessions(ctx)
	if err != nil {
		t.logger.Warn("mirror fetch failed, serving local sessions", "error", err)
		return local, nil
	}

	seen := make(map[string]bool, len(local))
	for _, s := range local {
		seen[s.SessionID] = true
	}
	merged := local
	for _, s := range remote {
		if !seen[s.SessionID] {
			merged = append(merged, s)
		}
	}
	return merged, nil
}

// DeleteSession removes one session by ID.
func (t *Tracker) DeleteSession(ctx context.Context, sessionID string) error {
	deleted, err := t.sessions.Delete(ctx, t.db, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !deleted {
		return domain.ErrNotFound("session", sessionID)
	}
	return nil
}

// ClearAll removes every stored session and settlement status.
func (t *Tracker) ClearAll(ctx context.Context) error {
	if err := t.sessions.Clear(ctx, t.db); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	if err := t.statuses.Clear(ctx, t.db); err != nil {
		return fmt.Errorf("clear settlement statuses: %w", err)
	}
	return nil
}

// StatsReport is the cross-session rollup plus the ledger balance check.
type StatsReport struct {
	Players      []domain.PlayerTotals `json:"players"`
	SessionCount int                   `json:"session_count"`
	Balance      int64                 `json:"balance"`
	Balanced     bool                  `json:"balanced"`
}

// PlayerStats recomputes per-player totals over the full session collection.
func (t *Tracker) PlayerStats(ctx context.Context) (*StatsReport, error) {
	sessions, err := t.Sessions(ctx)
	if err != nil {
		return nil, err
	}

	players := ledger.Aggregate(sessions)
	balance := ledger.BalanceCheck(players)
	return &StatsReport{
		Players:      players,
		SessionCount: len(sessions),
		Balance:      balance,
		Balanced:     balance == 0,
	}, nil
}

type pairKey struct {
	from, to string
}

// Settlements recomputes the transfer plan from current totals and joins the
// advisory statuses stored locally and on the mirror. Status metadata never
// changes an amount.
func (t *Tracker) Settlements(ctx context.Context) ([]domain.SettlementState, error) {
	sessions, err := t.Sessions(ctx)
	if err != nil {
		return nil, err
	}

	plan := ledger.Settle(ledger.Aggregate(sessions))

	statusByPair := make(map[pairKey]domain.SettlementStatusRecord)
	local, err := t.statuses.List(ctx, t.db)
	if err != nil {
		return nil, fmt.Errorf("list settlement statuses: %w", err)
	}
	for _, rec := range local {
		statusByPair[pairKey{rec.Debtor, rec.Creditor}] = rec
	}
	if t.mirror.Enabled() {
		remote, err := t.mirror.ListSettlementStatuses(ctx)
		if err != nil {
			t.logger.Warn("mirror settlement statuses unavailable", "error", err)
		} else {
			for _, rec := range remote {
				statusByPair[pairKey{rec.Debtor, rec.Creditor}] = rec
			}
		}
	}

	states := make([]domain.SettlementState, 0, len(plan))
	for _, s := range plan {
		state := domain.SettlementState{Settlement: s, Status: domain.SettlementPending}
		if rec, ok := statusByPair[pairKey{s.From, s.To}]; ok {
			state.Status = rec.Status
			updatedAt := rec.UpdatedAt
			state.UpdatedAt = &updatedAt
		}
		states = append(states, state)
	}
	return states, nil
}

// SetSettlementStatus records an advisory status for a (debtor, creditor)
// pair, snapshotting the currently computed amount alongside it. The change
// is pushed to the mirror best-effort.
func (t *Tracker) SetSettlementStatus(ctx context.Context, debtor, creditor string, status domain.SettlementStatus) (*domain.SettlementStatusRecord, error) {
	if !status.Valid() {
		return nil, domain.ErrValidation(fmt.Sprintf("unknown settlement status %q", status))
	}
	if debtor == "" || creditor == "" {
		return nil, domain.ErrValidation("debtor and creditor are required")
	}

	states, err := t.Settlements(ctx)
	if err != nil {
		return nil, err
	}
	var amount int64
	for _, s := range states {
		if s.From == debtor && s.To == creditor {
			amount = s.Amount
			break
		}
	}

	rec, err := t.statuses.Upsert(ctx, t.db, domain.SettlementStatusRecord{
		Debtor:   debtor,
		Creditor: creditor,
		Status:   status,
		Amount:   amount,
	})
	if err != nil {
		return nil, fmt.Errorf("store settlement status: %w", err)
	}

	if t.mirror.Enabled() {
		if err := t.mirror.UpsertSettlementStatus(ctx, *rec); err != nil {
			t.logger.Warn("mirror settlement status update failed",
				"debtor", debtor, "creditor", creditor, "error", err)
		}
	}
	return rec, nil
}

// SyncResult summarizes a bulk upload to the mirror.
type SyncResult struct {
	Uploaded int `json:"uploaded"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// SyncToMirror uploads every local session to the mirror, skipping sessions
// the mirror already holds.
func (t *Tracker) SyncToMirror(ctx context.Context) (*SyncResult, error) {
	if !t.mirror.Enabled() {
		return nil, domain.ErrMirrorDisabled()
	}

	local, err := t.sessions.List(ctx, t.db)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	result := &SyncResult{}
	for _, session := range local {
		status, err := t.mirror.UploadSession(ctx, session)
		if err != nil {
			t.logger.Warn("sync upload failed", "session_id", session.SessionID, "error", err)
			result.Errors++
			continue
		}
		if status == provider.UploadSkipped {
			result.Skipped++
		} else {
			result.Uploaded++
		}
	}
	return result, nil
}

// MergePlayers folds every occurrence of the source display name into the
// target across all stored sessions, summing stat lines where the rename
// makes two entries collide within one session. Returns the number of
// sessions rewritten.
func (t *Tracker) MergePlayers(ctx context.Context, source, target string) (int, error) {
	if source == "" || target == "" {
		return 0, domain.ErrValidation("source and target players are required")
	}
	if strings.EqualFold(source, target) {
		return 0, domain.ErrValidation("source and target players must be different")
	}

	sessions, err := t.sessions.List(ctx, t.db)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	changed := 0
	for i := range sessions {
		session := sessions[i]
		if !renamePlayers(&session, source, target) {
			continue
		}
		if err := t.sessions.ReplacePlayers(ctx, t.db, &session); err != nil {
			return changed, fmt.Errorf("rewrite session %s: %w", session.SessionID, err)
		}
		changed++
	}
	return changed, nil
}

// renamePlayers applies the merge to one session in place, reporting whether
// anything changed.
func renamePlayers(session *domain.SessionRecord, source, target string) bool {
	touched := false
	for i := range session.Players {
		if session.Players[i].FullName == source {
			session.Players[i].Name = target
			session.Players[i].FullName = target
			touched = true
		}
	}
	if !touched {
		return false
	}

	// Fold stat lines that now share a handle.
	merged := make(map[string]*domain.PlayerSessionStat)
	var order []string
	for _, p := range session.Players {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if existing, ok := merged[key]; ok {
			existing.BuyIn += p.BuyIn
			existing.BuyOut += p.BuyOut
			existing.Net += p.Net
			continue
		}
		cp := p
		merged[key] = &cp
		order = append(order, key)
	}

	players := make([]domain.PlayerSessionStat, 0, len(order))
	for _, key := range order {
		players = append(players, *merged[key])
	}
	sort.SliceStable(players, func(i, j int) bool { return players[i].Net > players[j].Net })

	session.Players = players
	session.PlayerCount = len(players)
	winner := session.Winner()
	session.WinnerName = winner.Name
	session.WinnerProfit = winner.Net
	return true
}
