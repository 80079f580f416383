package ledger

import (
	"math"
	"sort"
	"strings"

	"github.com/tablestakes/tracker/internal/domain"
)

// Aggregate builds cross-session totals for every player appearing in the
// given sessions. It is a pure function: no state survives between calls, and
// the same session collection in the same order yields identical output.
//
// Players are grouped by case-insensitive handle and returned sorted
// descending by TotalNet (stable, ties keep encounter order), so rank is
// position+1. ActualValue is TotalNet in major units; RoundedValue is its
// half-away-from-zero rounding, corrected so the rounded values reconcile with
// the rounded grand total: when the rounding residue across all players
// exceeds a cent, the single player with the largest |TotalNet| absorbs it.
// Downstream display depends on exactly this correction rule.
func Aggregate(sessions []domain.SessionRecord) []domain.PlayerTotals {
	totals := make(map[string]*domain.PlayerTotals)
	var order []string

	for _, session := range sessions {
		winnerKey := strings.ToLower(strings.TrimSpace(session.WinnerName))

		for _, player := range session.Players {
			key := strings.ToLower(strings.TrimSpace(player.Name))
			total, ok := totals[key]
			if !ok {
				total = &domain.PlayerTotals{
					Name:     player.Name,
					FullName: player.FullName,
				}
				totals[key] = total
				order = append(order, key)
			}

			total.TotalBuyIn += player.BuyIn
			total.TotalBuyOut += player.BuyOut
			total.TotalNet += player.Net
			total.GamesPlayed++
			if key == winnerKey {
				total.Wins++
			}
		}
	}

	players := make([]domain.PlayerTotals, 0, len(order))
	for _, key := range order {
		players = append(players, *totals[key])
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].TotalNet > players[j].TotalNet
	})

	var diffSum float64
	for i := range players {
		p := &players[i]
		p.ActualValue = float64(p.TotalNet) / 100
		p.RoundedValue = int64(math.Round(p.ActualValue))
		p.RoundingDiff = p.ActualValue - float64(p.RoundedValue)
		diffSum += p.RoundingDiff

		if p.GamesPlayed > 0 {
			rate := float64(p.Wins) / float64(p.GamesPlayed) * 100
			p.WinRate = math.Round(rate*10) / 10
		}
	}

	// Absorb the rounding residue into the player with the largest absolute
	// net, keeping the first such player on ties.
	if math.Abs(diffSum) > 0.01 && len(players) > 0 {
		largest := &players[0]
		for i := 1; i < len(players); i++ {
			if abs64(players[i].TotalNet) > abs64(largest.TotalNet) {
				largest = &players[i]
			}
		}
		largest.RoundedValue += int64(math.Round(diffSum))
	}

	return players
}

// BalanceCheck returns the sum of all players' TotalNet. A correctly recorded
// ledger is zero-sum; a nonzero result means corrupted or partial session
// data. Imbalance is surfaced, never rejected.
func BalanceCheck(players []domain.PlayerTotals) int64 {
	var sum int64
	for _, p := range players {
		sum += p.TotalNet
	}
	return sum
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
