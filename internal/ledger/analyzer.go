package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tablestakes/tracker/internal/domain"
)

// Column names expected in a ledger export. session_start_at is optional.
const (
	colNickname     = "player_nickname"
	colBuyIn        = "buy_in"
	colBuyOut       = "buy_out"
	colNet          = "net"
	colSessionStart = "session_start_at"
)

// Analyze folds parsed rows into a single session record.
//
// Rows are grouped by the lower-cased, trimmed player_nickname; repeated rows
// for the same player (rebuys under the same handle) are summed, never
// duplicated. Rows with a blank nickname are skipped rather than failing the
// whole session. Monetary fields parse leniently: a missing or non-numeric
// value contributes zero. The session date comes from the first row carrying a
// parseable session_start_at and is never overwritten by later rows.
//
// The returned record has Players sorted descending by net (stable, so ties
// keep row order), with winner-derived fields filled in. SessionID and AddedAt
// are left for the caller to assign. A session with zero valid players fails
// with NO_VALID_PLAYERS; it must not be stored.
func Analyze(rows []Row, resolve *AliasResolver) (*domain.SessionRecord, error) {
	stats := make(map[string]*domain.PlayerSessionStat)
	var order []string
	var totalBuyIn int64
	var gameDate *string

	for _, row := range rows {
		name := strings.TrimSpace(row[colNickname])
		if name == "" {
			continue
		}

		buyIn := parseAmount(row[colBuyIn])
		buyOut := parseAmount(row[colBuyOut])
		net := parseAmount(row[colNet])

		if gameDate == nil {
			if d, ok := sessionDate(row[colSessionStart]); ok {
				gameDate = &d
			}
		}

		key := strings.ToLower(name)
		stat, ok := stats[key]
		if !ok {
			stat = &domain.PlayerSessionStat{
				Name:     name,
				FullName: resolve.Resolve(name),
			}
			stats[key] = stat
			order = append(order, key)
		}

		stat.BuyIn += buyIn
		stat.BuyOut += buyOut
		stat.Net += net
		totalBuyIn += buyIn
	}

	if len(order) == 0 {
		return nil, domain.ErrNoValidPlayers()
	}

	players := make([]domain.PlayerSessionStat, 0, len(order))
	for _, key := range order {
		players = append(players, *stats[key])
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Net > players[j].Net
	})

	winner := players[0]
	return &domain.SessionRecord{
		Date:         gameDate,
		Players:      players,
		WinnerName:   winner.Name,
		WinnerProfit: winner.Net,
		TotalPot:     totalBuyIn,
		PlayerCount:  len(players),
	}, nil
}

// parseAmount reads a monetary value in minor units. Malformed input is
// masked to zero; hand-entered ledger data is messy and the export format
// sometimes leaves fields blank.
func parseAmount(s string) int64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return d.Round(0).IntPart()
}

// sessionDate converts a session_start_at timestamp to a day-precision ISO
// date. Ledger exports use RFC 3339, but older files carry a bare datetime or
// date.
func sessionDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format("2006-01-02"), true
		}
	}
	return "", false
}
