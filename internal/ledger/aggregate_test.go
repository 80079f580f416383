package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablestakes/tracker/internal/domain"
)

func session(id string, winner string, players ...domain.PlayerSessionStat) domain.SessionRecord {
	return domain.SessionRecord{
		SessionID:   id,
		Players:     players,
		WinnerName:  winner,
		PlayerCount: len(players),
	}
}

func stat(name string, buyIn, buyOut, net int64) domain.PlayerSessionStat {
	return domain.PlayerSessionStat{Name: name, FullName: name, BuyIn: buyIn, BuyOut: buyOut, Net: net}
}

func TestAggregate(t *testing.T) {
	t.Run("totals across sessions", func(t *testing.T) {
		sessions := []domain.SessionRecord{
			session("s1", "alice", stat("alice", 100, 150, 50), stat("bob", 100, 50, -50)),
			session("s2", "bob", stat("alice", 100, 80, -20), stat("bob", 100, 120, 20)),
		}

		players := Aggregate(sessions)
		require.Len(t, players, 2)

		alice := players[0]
		assert.Equal(t, "alice", alice.Name)
		assert.Equal(t, int64(30), alice.TotalNet)
		assert.Equal(t, int64(200), alice.TotalBuyIn)
		assert.Equal(t, int64(230), alice.TotalBuyOut)
		assert.Equal(t, 2, alice.GamesPlayed)
		assert.Equal(t, 1, alice.Wins)
		assert.Equal(t, 50.0, alice.WinRate)

		bob := players[1]
		assert.Equal(t, int64(-30), bob.TotalNet)
		assert.Equal(t, 1, bob.Wins)
	})

	t.Run("case insensitive grouping and win matching", func(t *testing.T) {
		sessions := []domain.SessionRecord{
			session("s1", "Alice", stat("Alice", 100, 150, 50), stat("bob", 100, 50, -50)),
			session("s2", "ALICE", stat("alice", 100, 130, 30), stat("bob", 100, 70, -30)),
		}

		players := Aggregate(sessions)
		require.Len(t, players, 2)
		assert.Equal(t, int64(80), players[0].TotalNet)
		assert.Equal(t, 2, players[0].Wins)
		assert.Equal(t, 100.0, players[0].WinRate)
	})

	t.Run("sorted descending by total net", func(t *testing.T) {
		sessions := []domain.SessionRecord{
			session("s1", "carol",
				stat("alice", 100, 90, -10),
				stat("bob", 100, 80, -20),
				stat("carol", 100, 130, 30)),
		}

		players := Aggregate(sessions)
		require.Len(t, players, 3)
		assert.Equal(t, "carol", players[0].Name)
		assert.Equal(t, "alice", players[1].Name)
		assert.Equal(t, "bob", players[2].Name)
	})

	t.Run("idempotent over unchanged input", func(t *testing.T) {
		sessions := []domain.SessionRecord{
			session("s1", "alice", stat("alice", 100, 175, 75), stat("bob", 100, 25, -75)),
		}

		first := Aggregate(sessions)
		second := Aggregate(sessions)
		assert.Equal(t, first, second)
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, Aggregate(nil))
	})
}

func TestAggregateRounding(t *testing.T) {
	t.Run("actual and rounded values", func(t *testing.T) {
		sessions := []domain.SessionRecord{
			session("s1", "alice", stat("alice", 100, 350, 250), stat("bob", 100, 0, -250)),
		}

		players := Aggregate(sessions)
		assert.Equal(t, 2.5, players[0].ActualValue)
		assert.Equal(t, int64(3), players[0].RoundedValue) // half away from zero
		assert.Equal(t, -2.5, players[1].ActualValue)
		assert.Equal(t, int64(-3), players[1].RoundedValue)
	})

	t.Run("largest absolute net absorbs the residue", func(t *testing.T) {
		// Nets +130, -65, -65 give actual 1.3, -0.65, -0.65 rounding to 1, -1, -1
		// with residue 0.3+0.35+0.35 = 1.0, absorbed by the +130 player.
		sessions := []domain.SessionRecord{
			session("s1", "alice",
				stat("alice", 200, 330, 130),
				stat("bob", 100, 35, -65),
				stat("carol", 100, 35, -65)),
		}

		players := Aggregate(sessions)
		require.Len(t, players, 3)

		var roundedSum int64
		var actualSum float64
		for _, p := range players {
			roundedSum += p.RoundedValue
			actualSum += p.ActualValue
		}
		assert.Equal(t, int64(0), roundedSum)
		assert.InDelta(t, 0, actualSum, 1e-9)

		// alice (largest |net|) got the correction: 1 + 1 = 2
		assert.Equal(t, int64(2), players[0].RoundedValue)
	})

	t.Run("rounding conservation over random-ish nets", func(t *testing.T) {
		nets := []int64{1234, -567, -890, 223}
		players := make([]domain.PlayerSessionStat, 0, len(nets))
		for i, net := range nets {
			players = append(players, stat(string(rune('a'+i)), 100, 100+net, net))
		}
		sessions := []domain.SessionRecord{session("s1", "a", players...)}

		aggregated := Aggregate(sessions)

		var roundedSum int64
		var actualSum float64
		for _, p := range aggregated {
			roundedSum += p.RoundedValue
			actualSum += p.ActualValue
		}
		assert.InDelta(t, float64(roundedSum), actualSum, 1.0)
	})
}

func TestBalanceCheck(t *testing.T) {
	t.Run("zero for balanced ledger", func(t *testing.T) {
		sessions := []domain.SessionRecord{
			session("s1", "alice", stat("alice", 100, 150, 50), stat("bob", 100, 50, -50)),
		}
		assert.Equal(t, int64(0), BalanceCheck(Aggregate(sessions)))
	})

	t.Run("surfaces imbalance without rejecting", func(t *testing.T) {
		sessions := []domain.SessionRecord{
			session("s1", "alice", stat("alice", 100, 150, 50), stat("bob", 100, 70, -30)),
		}
		assert.Equal(t, int64(20), BalanceCheck(Aggregate(sessions)))
	})
}
