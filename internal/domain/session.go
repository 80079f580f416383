package domain

import "time"

// PlayerSessionStat is one player's line inside one session.
// Name is the raw handle as it appeared in the ledger export; FullName is the
// resolved display name. Monetary fields are integer minor units (cents).
// Net comes straight from the source data; the export may disagree slightly
// with BuyOut-BuyIn, and the source number wins.
type PlayerSessionStat struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	BuyIn    int64  `json:"buy_in"`
	BuyOut   int64  `json:"buy_out"`
	Net      int64  `json:"net"`
}

// SessionRecord is one analyzed poker sitting (one uploaded ledger file).
// Players is sorted descending by Net, winner first, and is never empty for a
// stored session. Records are immutable after creation; they are only ever
// deleted by ID or bulk-cleared.
type SessionRecord struct {
	SessionID     string              `json:"session_id"`
	Date          *string             `json:"date,omitempty"` // day-precision ISO 8601
	Players       []PlayerSessionStat `json:"players"`
	WinnerName    string              `json:"winner_name"`
	WinnerProfit  int64               `json:"winner_profit"`
	TotalPot      int64               `json:"total_pot"`
	PlayerCount   int                 `json:"player_count"`
	AddedAt       time.Time           `json:"added_at"`
}

// Winner returns the session winner's stat line.
func (s *SessionRecord) Winner() PlayerSessionStat {
	return s.Players[0]
}
