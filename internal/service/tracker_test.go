package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablestakes/tracker/internal/domain"
	"github.com/tablestakes/tracker/internal/provider"
	"github.com/tablestakes/tracker/internal/repository"
)

const sampleLedger = "player_nickname,player_id,session_start_at,buy_in,buy_out,net\n" +
	"alice,p1,2024-03-01T20:00:00Z,5000,9000,4000\n" +
	"bob,p2,2024-03-01T20:00:00Z,5000,1000,-4000\n"

// fakeSessionRepo is an in-memory SessionRepository.
type fakeSessionRepo struct {
	sessions []domain.SessionRecord
}

func (f *fakeSessionRepo) List(_ context.Context, _ repository.DBTX) ([]domain.SessionRecord, error) {
	out := make([]domain.SessionRecord, len(f.sessions))
	copy(out, f.sessions)
	return out, nil
}

func (f *fakeSessionRepo) FindBySessionID(_ context.Context, _ repository.DBTX, sessionID string) (*domain.SessionRecord, error) {
	for i := range f.sessions {
		if f.sessions[i].SessionID == sessionID {
			s := f.sessions[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) FindDuplicate(_ context.Context, _ repository.DBTX, date *string, winnerName string, totalPot int64) (*domain.SessionRecord, error) {
	for i := range f.sessions {
		s := f.sessions[i]
		if s.WinnerName != winnerName || s.TotalPot != totalPot {
			continue
		}
		if (s.Date == nil) != (date == nil) {
			continue
		}
		if s.Date != nil && *s.Date != *date {
			continue
		}
		return &s, nil
	}
	return nil, nil
}

func (f *fakeSessionRepo) Insert(_ context.Context, _ repository.DBTX, session *domain.SessionRecord) error {
	for i := range f.sessions {
		if f.sessions[i].SessionID == session.SessionID {
			return domain.ErrConflict("session already exists")
		}
	}
	f.sessions = append(f.sessions, *session)
	return nil
}

func (f *fakeSessionRepo) Delete(_ context.Context, _ repository.DBTX, sessionID string) (bool, error) {
	for i := range f.sessions {
		if f.sessions[i].SessionID == sessionID {
			f.sessions = append(f.sessions[:i], f.sessions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSessionRepo) Clear(_ context.Context, _ repository.DBTX) error {
	f.sessions = nil
	return nil
}

func (f *fakeSessionRepo) ReplacePlayers(_ context.Context, _ repository.DBTX, session *domain.SessionRecord) error {
	for i := range f.sessions {
		if f.sessions[i].SessionID == session.SessionID {
			f.sessions[i] = *session
			return nil
		}
	}
	return domain.ErrNotFound("session", session.SessionID)
}

// fakeStatusRepo is an in-memory SettlementStatusRepository.
type fakeStatusRepo struct {
	records []domain.SettlementStatusRecord
}

func (f *fakeStatusRepo) List(_ context.Context, _ repository.DBTX) ([]domain.SettlementStatusRecord, error) {
	out := make([]domain.SettlementStatusRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeStatusRepo) Upsert(_ context.Context, _ repository.DBTX, rec domain.SettlementStatusRecord) (*domain.SettlementStatusRecord, error) {
	rec.UpdatedAt = time.Now().UTC()
	for i := range f.records {
		if f.records[i].Debtor == rec.Debtor && f.records[i].Creditor == rec.Creditor {
			f.records[i] = rec
			return &rec, nil
		}
	}
	f.records = append(f.records, rec)
	return &rec, nil
}

func (f *fakeStatusRepo) Clear(_ context.Context, _ repository.DBTX) error {
	f.records = nil
	return nil
}

func newTestTracker(mirrorURL string) (*Tracker, *fakeSessionRepo, *fakeStatusRepo) {
	sessions := &fakeSessionRepo{}
	statuses := &fakeStatusRepo{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mirror := provider.NewMirrorClient(mirrorURL, "test-key", logger)
	tracker := NewTracker(nil, sessions, statuses, mirror, nil, "INR", logger)
	return tracker, sessions, statuses
}

func testSession(id, date, winner string, players ...domain.PlayerSessionStat) domain.SessionRecord {
	var pot int64
	var profit int64
	for _, p := range players {
		pot += p.BuyIn
		if p.Name == winner {
			profit = p.Net
		}
	}
	var d *string
	if date != "" {
		d = &date
	}
	return domain.SessionRecord{
		SessionID:    id,
		Date:         d,
		Players:      players,
		WinnerName:   winner,
		WinnerProfit: profit,
		TotalPot:     pot,
		PlayerCount:  len(players),
		AddedAt:      time.Now().UTC(),
	}
}

func stat(name string, buyIn, buyOut, net int64) domain.PlayerSessionStat {
	return domain.PlayerSessionStat{Name: name, FullName: name, BuyIn: buyIn, BuyOut: buyOut, Net: net}
}

func TestImportLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("saves a new session", func(t *testing.T) {
		tracker, sessions, _ := newTestTracker("")

		result, err := tracker.ImportLedger(ctx, "friday_game.csv", sampleLedger)
		require.NoError(t, err)

		assert.Equal(t, ImportSaved, result.Status)
		assert.Equal(t, "friday_game", result.Session.SessionID)
		assert.Equal(t, "alice", result.Session.WinnerName)
		assert.Equal(t, int64(10000), result.Session.TotalPot)
		require.NotNil(t, result.Session.Date)
		assert.Equal(t, "2024-03-01", *result.Session.Date)
		assert.Len(t, sessions.sessions, 1)
	})

	t.Run("same filename is a duplicate", func(t *testing.T) {
		tracker, sessions, _ := newTestTracker("")

		_, err := tracker.ImportLedger(ctx, "friday_game.csv", sampleLedger)
		require.NoError(t, err)

		result, err := tracker.ImportLedger(ctx, "friday_game.csv", sampleLedger)
		require.NoError(t, err)
		assert.Equal(t, ImportDuplicate, result.Status)
		assert.Len(t, sessions.sessions, 1)
	})

	t.Run("same content under a new filename is a duplicate", func(t *testing.T) {
		tracker, sessions, _ := newTestTracker("")

		_, err := tracker.ImportLedger(ctx, "friday_game.csv", sampleLedger)
		require.NoError(t, err)

		result, err := tracker.ImportLedger(ctx, "friday_game (1).csv", sampleLedger)
		require.NoError(t, err)
		assert.Equal(t, ImportDuplicate, result.Status)
		assert.Len(t, sessions.sessions, 1)
	})

	t.Run("blank filename gets a generated id", func(t *testing.T) {
		tracker, _, _ := newTestTracker("")

		result, err := tracker.ImportLedger(ctx, "", sampleLedger)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(result.Session.SessionID, "game_"))
	})

	t.Run("rejects empty input", func(t *testing.T) {
		tracker, _, _ := newTestTracker("")

		_, err := tracker.ImportLedger(ctx, "empty.csv", "player_nickname,net\n")
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "EMPTY_INPUT", appErr.Code)
	})
}

func TestSessionsMergesMirror(t *testing.T) {
	ctx := context.Background()

	remote := []map[string]interface{}{
		{
			"game_id": "local_1", "date": "2024-03-01",
			"players":       []map[string]interface{}{{"name": "alice", "full_name": "alice", "buy_in": 5000, "buy_out": 9000, "net": 4000}},
			"winner":        "alice",
			"winner_profit": 4000, "total_pot": 5000, "player_count": 1,
			"created_at": "2024-03-01T21:00:00Z",
		},
		{
			"game_id": "remote_only", "date": "2024-02-01",
			"players":       []map[string]interface{}{{"name": "bob", "full_name": "bob", "buy_in": 2000, "buy_out": 2000, "net": 0}},
			"winner":        "bob",
			"winner_profit": 0, "total_pot": 2000, "player_count": 1,
			"created_at": "2024-02-01T21:00:00Z",
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/v1/games", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(remote)
	}))
	defer server.Close()

	tracker, sessions, _ := newTestTracker(server.URL)
	sessions.sessions = []domain.SessionRecord{
		testSession("local_1", "2024-03-01", "alice", stat("alice", 5000, 9000, 4000)),
	}

	merged, err := tracker.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Equal(t, "local_1", merged[0].SessionID)
	assert.Equal(t, "remote_only", merged[1].SessionID)
}

func TestSessionsMirrorFailureDegradesToLocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	tracker, sessions, _ := newTestTracker(server.URL)
	sessions.sessions = []domain.SessionRecord{
		testSession("g1", "2024-03-01", "alice", stat("alice", 5000, 9000, 4000)),
	}

	merged, err := tracker.Sessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, merged, 1)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	tracker, sessions, _ := newTestTracker("")
	sessions.sessions = []domain.SessionRecord{
		testSession("g1", "2024-03-01", "alice", stat("alice", 100, 200, 100)),
	}

	require.NoError(t, tracker.DeleteSession(ctx, "g1"))
	assert.Empty(t, sessions.sessions)

	err := tracker.DeleteSession(ctx, "g1")
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestPlayerStats(t *testing.T) {
	tracker, sessions, _ := newTestTracker("")
	sessions.sessions = []domain.SessionRecord{
		testSession("g1", "2024-03-01", "alice",
			stat("alice", 5000, 9000, 4000),
			stat("bob", 5000, 1000, -4000)),
		testSession("g2", "2024-03-08", "bob",
			stat("bob", 3000, 5000, 2000),
			stat("alice", 3000, 1000, -2000)),
	}

	report, err := tracker.PlayerStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.SessionCount)
	assert.True(t, report.Balanced)
	require.Len(t, report.Players, 2)
	assert.Equal(t, "alice", report.Players[0].Name)
	assert.Equal(t, int64(2000), report.Players[0].TotalNet)
	assert.Equal(t, int64(-2000), report.Players[1].TotalNet)
}

func TestSettlementsJoinStoredStatuses(t *testing.T) {
	ctx := context.Background()
	tracker, sessions, statuses := newTestTracker("")
	sessions.sessions = []domain.SessionRecord{
		testSession("g1", "2024-03-01", "alice",
			stat("alice", 5000, 9000, 4000),
			stat("bob", 5000, 1000, -4000)),
	}
	statuses.records = []domain.SettlementStatusRecord{
		{Debtor: "bob", Creditor: "alice", Status: domain.SettlementPaymentSent, Amount: 4000, UpdatedAt: time.Now().UTC()},
	}

	states, err := tracker.Settlements(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "bob", states[0].From)
	assert.Equal(t, "alice", states[0].To)
	assert.Equal(t, int64(4000), states[0].Amount)
	assert.Equal(t, domain.SettlementPaymentSent, states[0].Status)
	assert.NotNil(t, states[0].UpdatedAt)
}

func TestSetSettlementStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects unknown status", func(t *testing.T) {
		tracker, _, _ := newTestTracker("")
		_, err := tracker.SetSettlementStatus(ctx, "bob", "alice", "settled-ish")
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	})

	t.Run("snapshots the computed amount", func(t *testing.T) {
		tracker, sessions, statuses := newTestTracker("")
		sessions.sessions = []domain.SessionRecord{
			testSession("g1", "2024-03-01", "alice",
				stat("alice", 5000, 9000, 4000),
				stat("bob", 5000, 1000, -4000)),
		}

		rec, err := tracker.SetSettlementStatus(ctx, "bob", "alice", domain.SettlementPaid)
		require.NoError(t, err)
		assert.Equal(t, int64(4000), rec.Amount)
		assert.Equal(t, domain.SettlementPaid, rec.Status)
		require.Len(t, statuses.records, 1)
	})
}

func TestSyncToMirror(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a configured mirror", func(t *testing.T) {
		tracker, _, _ := newTestTracker("")
		_, err := tracker.SyncToMirror(ctx)
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "MIRROR_DISABLED", appErr.Code)
	})

	t.Run("uploads missing sessions and skips known ones", func(t *testing.T) {
		var posted int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if r.Method == http.MethodPost {
				posted++
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte("[]"))
				return
			}
			if strings.Contains(r.URL.RawQuery, "game_id=eq.known") {
				_, _ = w.Write([]byte(`[{"game_id":"known"}]`))
				return
			}
			_, _ = w.Write([]byte("[]"))
		}))
		defer server.Close()

		tracker, sessions, _ := newTestTracker(server.URL)
		sessions.sessions = []domain.SessionRecord{
			testSession("known", "2024-03-01", "alice", stat("alice", 100, 200, 100)),
			testSession("fresh", "2024-03-08", "bob", stat("bob", 100, 200, 100)),
		}

		result, err := tracker.SyncToMirror(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Uploaded)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 0, result.Errors)
		assert.Equal(t, 1, posted)
	})
}

func TestMergePlayers(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects merging a player into itself", func(t *testing.T) {
		tracker, _, _ := newTestTracker("")
		_, err := tracker.MergePlayers(ctx, "Bob", "bob")
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	})

	t.Run("folds colliding stat lines and recomputes the winner", func(t *testing.T) {
		tracker, sessions, _ := newTestTracker("")
		sessions.sessions = []domain.SessionRecord{
			testSession("g1", "2024-03-01", "alice",
				stat("alice", 5000, 9000, 4000),
				stat("bobby", 3000, 2000, -1000),
				stat("bob", 2000, 0, -2000)),
			testSession("g2", "2024-03-08", "carol",
				stat("carol", 1000, 2000, 1000),
				stat("dave", 1000, 0, -1000)),
		}

		changed, err := tracker.MergePlayers(ctx, "bobby", "bob")
		require.NoError(t, err)
		assert.Equal(t, 1, changed)

		session := sessions.sessions[0]
		require.Len(t, session.Players, 2)
		assert.Equal(t, 2, session.PlayerCount)
		assert.Equal(t, "alice", session.WinnerName)

		merged := session.Players[1]
		assert.Equal(t, "bob", merged.Name)
		assert.Equal(t, int64(5000), merged.BuyIn)
		assert.Equal(t, int64(2000), merged.BuyOut)
		assert.Equal(t, int64(-3000), merged.Net)
	})

	t.Run("promotes the merged player when it overtakes the winner", func(t *testing.T) {
		tracker, sessions, _ := newTestTracker("")
		sessions.sessions = []domain.SessionRecord{
			testSession("g1", "2024-03-01", "alice",
				stat("alice", 5000, 8000, 3000),
				stat("bobby", 3000, 5000, 2000),
				stat("bob", 2000, 4000, 2000),
				stat("eve", 7000, 0, -7000)),
		}

		changed, err := tracker.MergePlayers(ctx, "bobby", "bob")
		require.NoError(t, err)
		assert.Equal(t, 1, changed)

		session := sessions.sessions[0]
		assert.Equal(t, "bob", session.WinnerName)
		assert.Equal(t, int64(4000), session.WinnerProfit)
	})
}

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	tracker, sessions, _ := newTestTracker("")
	sessions.sessions = []domain.SessionRecord{
		testSession("g1", "2024-03-01", "alice",
			stat("alice", 5000, 9000, 4000),
			stat("bob", 5000, 1000, -4000)),
		testSession("g2", "2024-03-08", "bob",
			stat("bob", 3000, 5000, 2000),
			stat("alice", 3000, 1000, -2000)),
	}

	backup, err := tracker.ExportBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, backupVersion, backup.Version)
	assert.Equal(t, 2, backup.GameCount)

	raw, err := json.Marshal(backup)
	require.NoError(t, err)

	restoredTracker, restoredSessions, _ := newTestTracker("")
	var parsed Backup
	require.NoError(t, json.Unmarshal(raw, &parsed))

	restored, err := restoredTracker.ImportBackup(ctx, &parsed)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)
	assert.Len(t, restoredSessions.sessions, 2)
}

func TestImportBackupValidation(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newTestTracker("")

	for name, backup := range map[string]*Backup{
		"nil backup":     nil,
		"missing games":  {Version: 1},
		"blank game id":  {Version: 1, Games: []domain.SessionRecord{{Players: []domain.PlayerSessionStat{stat("a", 1, 1, 0)}}}},
		"empty players":  {Version: 1, Games: []domain.SessionRecord{{SessionID: "g1"}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tracker.ImportBackup(ctx, backup)
			var appErr *domain.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		})
	}
}

func TestExportReportCSV(t *testing.T) {
	tracker, sessions, _ := newTestTracker("")
	sessions.sessions = []domain.SessionRecord{
		testSession("g1", "2024-03-01", "alice",
			stat("alice", 5000, 9000, 4000),
			stat("bob", 5000, 1000, -4000)),
	}

	out, err := tracker.ExportReportCSV(context.Background())
	require.NoError(t, err)

	report := string(out)
	assert.True(t, strings.HasPrefix(report, "\uFEFF"))
	assert.Contains(t, report, "Poker Session Report")
	assert.Contains(t, report, "alice")
	assert.Contains(t, report, "Settlements")
	assert.Contains(t, report, "Balance Check")
}
