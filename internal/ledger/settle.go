package ledger

import (
	"sort"

	"github.com/tablestakes/tracker/internal/domain"
)

// Settle computes the pairwise transfers that zero out all player balances,
// using the classic greedy two-pointer creditor/debtor sweep. It works on
// copies of the input nets and never mutates its argument.
//
// Creditors (TotalNet > 0) are visited in descending net order, debtors
// ascending (most negative first); each step transfers
// min(creditor remainder, |debtor remainder|) and advances whichever side hit
// exactly zero. Emission order is deterministic: creditor-major, debtors in
// order within each creditor's turn. For zero-sum input both lists exhaust
// together and at most len(creditors)+len(debtors)-1 settlements are emitted.
//
// A non-zero-sum input is not rejected: the sweep runs until the shorter side
// exhausts and the remainder stays unsettled, matching the lenient handling
// everywhere else in this package. Callers surface imbalance through
// BalanceCheck instead.
func Settle(players []domain.PlayerTotals) []domain.Settlement {
	type balance struct {
		fullName string
		net      int64
	}

	var creditors, debtors []*balance
	for _, p := range players {
		switch {
		case p.TotalNet > 0:
			creditors = append(creditors, &balance{fullName: p.FullName, net: p.TotalNet})
		case p.TotalNet < 0:
			debtors = append(debtors, &balance{fullName: p.FullName, net: p.TotalNet})
		}
	}
	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].net > creditors[j].net })
	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].net < debtors[j].net })

	var settlements []domain.Settlement
	ci, di := 0, 0

	for ci < len(creditors) && di < len(debtors) {
		creditor := creditors[ci]
		debtor := debtors[di]

		amount := creditor.net
		if owed := -debtor.net; owed < amount {
			amount = owed
		}

		settlements = append(settlements, domain.Settlement{
			From:   debtor.fullName,
			To:     creditor.fullName,
			Amount: amount,
		})

		creditor.net -= amount
		debtor.net += amount

		if creditor.net == 0 {
			ci++
		}
		if debtor.net == 0 {
			di++
		}
	}

	return settlements
}
