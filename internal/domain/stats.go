package domain

import "time"

// PlayerTotals is the cross-session rollup for one player, keyed by the
// case-insensitive handle. It is computed fresh from the full session
// collection on every change and never persisted as authoritative state.
type PlayerTotals struct {
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	TotalBuyIn  int64   `json:"total_buy_in"`
	TotalBuyOut int64   `json:"total_buy_out"`
	TotalNet    int64   `json:"total_net"`
	GamesPlayed int     `json:"games_played"`
	Wins        int     `json:"wins"`
	WinRate     float64 `json:"win_rate"`

	// ActualValue is TotalNet in major currency units. RoundedValue is its
	// nearest-integer rounding after the global remainder correction: the
	// player with the largest |TotalNet| absorbs the rounding remainder so
	// that rounded values still sum to the rounded grand total.
	ActualValue  float64 `json:"actual_value"`
	RoundedValue int64   `json:"rounded_value"`
	RoundingDiff float64 `json:"rounding_diff"`
}

// Settlement is one recommended transfer from a net-negative player to a
// net-positive player. Amount is in minor units and is always recomputed from
// current totals; mirrored status metadata never feeds back into it.
type Settlement struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// SettlementStatus tracks the advisory payment state of a (debtor, creditor)
// pair. The amount stored alongside a status is a snapshot for display only.
type SettlementStatus string

const (
	SettlementPending         SettlementStatus = "pending"
	SettlementPaymentSent     SettlementStatus = "payment_sent"
	SettlementPaid            SettlementStatus = "paid"
	SettlementAdjusted        SettlementStatus = "adjusted"
	SettlementAdjustedOffline SettlementStatus = "adjusted_offline"
)

// Valid reports whether s is one of the known settlement statuses.
func (s SettlementStatus) Valid() bool {
	switch s {
	case SettlementPending, SettlementPaymentSent, SettlementPaid,
		SettlementAdjusted, SettlementAdjustedOffline:
		return true
	}
	return false
}

// SettlementState is a Settlement joined with its mirrored advisory status.
type SettlementState struct {
	Settlement
	Status    SettlementStatus `json:"status"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

// SettlementStatusRecord is one stored advisory status row, keyed by the
// (debtor, creditor) pair. Amount is a display snapshot taken when the status
// changed; the live amount is always recomputed from current totals.
type SettlementStatusRecord struct {
	Debtor    string           `json:"debtor"`
	Creditor  string           `json:"creditor"`
	Status    SettlementStatus `json:"status"`
	Amount    int64            `json:"amount"`
	UpdatedAt time.Time        `json:"updated_at"`
}
