package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tablestakes/tracker/internal/domain"
	"github.com/tablestakes/tracker/internal/guard"
)

// MirrorClient talks to an optional hosted mirror exposing a PostgREST-style
// API over the games and settlements tables. The mirror is an additional
// source of session records (deduped by session_id) and an advisory store for
// settlement statuses; settlement amounts are never read back from it.
type MirrorClient struct {
	baseURL string
	apiKey  string
	logger  *slog.Logger
	client  *http.Client
	breaker *guard.Breaker
}

// NewMirrorClient creates a mirror client. An empty baseURL disables the
// mirror; every call then fails with MIRROR_DISABLED. A circuit breaker stops
// hammering an unreachable mirror: after five consecutive failures calls fail
// fast for thirty seconds.
func NewMirrorClient(baseURL, apiKey string, logger *slog.Logger) *MirrorClient {
	return &MirrorClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: guard.NewBreaker(5, 30*time.Second),
	}
}

// Enabled reports whether a mirror endpoint is configured.
func (c *MirrorClient) Enabled() bool { return c != nil && c.baseURL != "" }

// mirrorSession is the wire shape of one games row.
type mirrorSession struct {
	GameID       string                     `json:"game_id"`
	Date         *string                    `json:"date"`
	Players      []domain.PlayerSessionStat `json:"players"`
	Winner       string                     `json:"winner"`
	WinnerProfit int64                      `json:"winner_profit"`
	TotalPot     int64                      `json:"total_pot"`
	PlayerCount  int                        `json:"player_count"`
	CreatedAt    time.Time                  `json:"created_at"`
}

func toMirrorSession(s domain.SessionRecord) mirrorSession {
	return mirrorSession{
		GameID:       s.SessionID,
		Date:         s.Date,
		Players:      s.Players,
		Winner:       s.WinnerName,
		WinnerProfit: s.WinnerProfit,
		TotalPot:     s.TotalPot,
		PlayerCount:  s.PlayerCount,
		CreatedAt:    s.AddedAt,
	}
}

func (m mirrorSession) toDomain() domain.SessionRecord {
	return domain.SessionRecord{
		SessionID:    m.GameID,
		Date:         m.Date,
		Players:      m.Players,
		WinnerName:   m.Winner,
		WinnerProfit: m.WinnerProfit,
		TotalPot:     m.TotalPot,
		PlayerCount:  m.PlayerCount,
		AddedAt:      m.CreatedAt,
	}
}

// FetchSessions returns all sessions stored on the mirror, newest date first.
func (c *MirrorClient) FetchSessions(ctx context.Context) ([]domain.SessionRecord, error) {
	if !c.Enabled() {
		return nil, domain.ErrMirrorDisabled()
	}

	var rows []mirrorSession
	if err := c.get(ctx, "/rest/v1/games?select=*&order=date.desc", &rows); err != nil {
		return nil, fmt.Errorf("fetch mirror sessions: %w", err)
	}

	sessions := make([]domain.SessionRecord, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.toDomain())
	}
	return sessions, nil
}

// UploadStatus reports the outcome of an UploadSession call.
type UploadStatus string

const (
	UploadDone    UploadStatus = "uploaded"
	UploadSkipped UploadStatus = "skipped"
)

// UploadSession pushes one session to the mirror, skipping when the mirror
// already holds the session_id.
func (c *MirrorClient) UploadSession(ctx context.Context, session domain.SessionRecord) (UploadStatus, error) {
	if !c.Enabled() {
		return "", domain.ErrMirrorDisabled()
	}

	var existing []struct {
		GameID string `json:"game_id"`
	}
	path := "/rest/v1/games?select=game_id&game_id=eq." + url.QueryEscape(session.SessionID)
	if err := c.get(ctx, path, &existing); err != nil {
		return "", fmt.Errorf("check mirror session: %w", err)
	}
	if len(existing) > 0 {
		return UploadSkipped, nil
	}

	if err := c.post(ctx, "/rest/v1/games", toMirrorSession(session), nil); err != nil {
		return "", fmt.Errorf("upload session: %w", err)
	}
	return UploadDone, nil
}

// ListSettlementStatuses returns the advisory status rows stored on the
// mirror. Amounts in the response are display snapshots only.
func (c *MirrorClient) ListSettlementStatuses(ctx context.Context) ([]domain.SettlementStatusRecord, error) {
	if !c.Enabled() {
		return nil, domain.ErrMirrorDisabled()
	}

	var rows []domain.SettlementStatusRecord
	if err := c.get(ctx, "/rest/v1/settlements?select=*", &rows); err != nil {
		return nil, fmt.Errorf("fetch mirror settlement statuses: %w", err)
	}
	return rows, nil
}

// UpsertSettlementStatus stores an advisory status for a (debtor, creditor)
// pair on the mirror.
func (c *MirrorClient) UpsertSettlementStatus(ctx context.Context, rec domain.SettlementStatusRecord) error {
	if !c.Enabled() {
		return domain.ErrMirrorDisabled()
	}

	payload := map[string]interface{}{
		"debtor":     rec.Debtor,
		"creditor":   rec.Creditor,
		"status":     rec.Status,
		"amount":     rec.Amount,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	err := c.post(ctx, "/rest/v1/settlements?on_conflict=debtor,creditor", payload, map[string]string{
		"Prefer": "resolution=merge-duplicates",
	})
	if err != nil {
		return fmt.Errorf("upsert settlement status: %w", err)
	}
	return nil
}

func (c *MirrorClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *MirrorClient) post(ctx context.Context, path string, payload interface{}, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req, nil)
}

func (c *MirrorClient) do(req *http.Request, out interface{}) error {
	if err := c.breaker.Allow(); err != nil {
		return fmt.Errorf("mirror call: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("mirror call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.breaker.RecordFailure()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mirror returned %d: %s", resp.StatusCode, body)
	}

	c.breaker.RecordSuccess()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode mirror response: %w", err)
		}
	}
	return nil
}
