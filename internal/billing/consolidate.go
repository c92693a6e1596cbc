package billing

import (
	"sort"

	"github.com/dmoreira/financas-familia-go/internal/domain"
)

// Statement is the consolidated invoice of one card family for one
// cycle: per-card totals, the family-wide total, and the transactions
// that produced them, most recent first.
type Statement struct {
	Cycle              Cycle                           `json:"cycle"`
	Status             Status                          `json:"status"`
	PerCardTotals      map[string]float64              `json:"per_card_totals"`
	GlobalTotal        float64                         `json:"global_total"`
	TransactionsByCard map[string][]domain.Transaction `json:"transactions_by_card"`
}

// Consolidate groups the given transactions into the cycle window and
// computes the statement of a card family.
//
// Attribution rules, in precedence order:
//   - a transfer whose destination is a family member is a credit
//     (statement payment) on that card;
//   - an expense or transfer whose origin is a family member is a
//     charge on that card;
//   - everything else is ignored.
//
// The destination rule winning for transfers is what keeps an
// intra-family transfer from being counted twice. Every family member
// gets an entry even with no transactions, so GlobalTotal always
// equals the sum of PerCardTotals.
func Consolidate(family []domain.Account, cycle Cycle, txns []domain.Transaction) *Statement {
	members := make(map[string]bool, len(family))
	perCard := make(map[string]float64, len(family))
	byCard := make(map[string][]domain.Transaction, len(family))
	for _, a := range family {
		members[a.ID] = true
		perCard[a.ID] = 0
		byCard[a.ID] = []domain.Transaction{}
	}

	for _, t := range txns {
		if !cycle.Contains(t.Date) {
			continue
		}
		switch {
		case t.Type == domain.TransactionTransfer && members[t.DestinationID]:
			perCard[t.DestinationID] -= t.Value
			byCard[t.DestinationID] = append(byCard[t.DestinationID], t)
		case members[t.AccountID] && (t.Type == domain.TransactionExpense || t.Type == domain.TransactionTransfer):
			perCard[t.AccountID] += t.Value
			byCard[t.AccountID] = append(byCard[t.AccountID], t)
		}
	}

	// Most recent first; tie-break on ID so the result does not depend
	// on the iteration order of the input slice.
	for id := range byCard {
		list := byCard[id]
		sort.Slice(list, func(i, j int) bool {
			if !list[i].Date.Equal(list[j].Date) {
				return list[i].Date.After(list[j].Date)
			}
			return list[i].ID < list[j].ID
		})
		byCard[id] = list
	}

	var global float64
	for _, total := range perCard {
		global += total
	}

	return &Statement{
		Cycle:              cycle,
		PerCardTotals:      perCard,
		GlobalTotal:        global,
		TransactionsByCard: byCard,
	}
}
