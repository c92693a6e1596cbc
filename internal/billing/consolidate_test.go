package billing_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/billing"
	"github.com/dmoreira/financas-familia-go/internal/domain"
)

func card(id, parent string) domain.Account {
	return domain.Account{ID: id, Kind: domain.AccountCard, ParentAccountID: parent, Active: true}
}

func expense(id, account string, value float64, d time.Time) domain.Transaction {
	return domain.Transaction{ID: id, Type: domain.TransactionExpense, AccountID: account, Value: value, Date: d}
}

func transfer(id, from, to string, value float64, d time.Time) domain.Transaction {
	return domain.Transaction{ID: id, Type: domain.TransactionTransfer, AccountID: from, DestinationID: to, Value: value, Date: d}
}

func marchCycle(t *testing.T) billing.Cycle {
	t.Helper()
	c, err := billing.CycleFor(5, 15, date(2026, time.March, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c // Feb 6 .. Mar 5, due Mar 15
}

func TestConsolidate_ChargesAndCredits(t *testing.T) {
	cycle := marchCycle(t)
	family := []domain.Account{card("principal", ""), card("supp", "principal")}

	txns := []domain.Transaction{
		expense("t1", "principal", 100, date(2026, time.February, 10)),
		expense("t2", "supp", 40, date(2026, time.February, 20)),
		expense("t3", "principal", 60, date(2026, time.March, 5)),       // closing day, inclusive
		transfer("t4", "checking", "principal", 80, date(2026, time.March, 1)), // statement payment
		expense("t5", "principal", 999, date(2026, time.March, 6)),      // outside window
		expense("t6", "other-card", 50, date(2026, time.February, 15)),  // not a family member
		{ID: "t7", Type: domain.TransactionIncome, AccountID: "principal", Value: 30, Date: date(2026, time.February, 12)}, // income ignored
	}

	st := billing.Consolidate(family, cycle, txns)

	if got := st.PerCardTotals["principal"]; got != 100+60-80 {
		t.Errorf("principal total: expected 80, got %.2f", got)
	}
	if got := st.PerCardTotals["supp"]; got != 40 {
		t.Errorf("supplementary total: expected 40, got %.2f", got)
	}
	if st.GlobalTotal != 120 {
		t.Errorf("global total: expected 120, got %.2f", st.GlobalTotal)
	}
	if len(st.TransactionsByCard["principal"]) != 3 {
		t.Errorf("expected 3 transactions on principal, got %d", len(st.TransactionsByCard["principal"]))
	}
}

func TestConsolidate_TransferOutIsCharge(t *testing.T) {
	cycle := marchCycle(t)
	family := []domain.Account{card("principal", "")}

	// card pays an external account: charge on the card
	txns := []domain.Transaction{
		transfer("t1", "principal", "checking", 25, date(2026, time.February, 10)),
	}
	st := billing.Consolidate(family, cycle, txns)
	if st.PerCardTotals["principal"] != 25 {
		t.Errorf("transfer-out should charge the card: expected 25, got %.2f", st.PerCardTotals["principal"])
	}
}

func TestConsolidate_IntraFamilyTransferNotDoubleCounted(t *testing.T) {
	cycle := marchCycle(t)
	family := []domain.Account{card("principal", ""), card("supp", "principal")}

	// transfer between two family members: the destination credit wins,
	// the origin charge must not also be applied
	txns := []domain.Transaction{
		transfer("t1", "supp", "principal", 50, date(2026, time.February, 20)),
	}
	st := billing.Consolidate(family, cycle, txns)

	if st.PerCardTotals["principal"] != -50 {
		t.Errorf("destination credit: expected -50, got %.2f", st.PerCardTotals["principal"])
	}
	if st.PerCardTotals["supp"] != 0 {
		t.Errorf("origin must not be charged: expected 0, got %.2f", st.PerCardTotals["supp"])
	}
	if st.GlobalTotal != -50 {
		t.Errorf("global total: expected -50, got %.2f", st.GlobalTotal)
	}
}

func TestConsolidate_EveryMemberInitialized(t *testing.T) {
	cycle := marchCycle(t)
	family := []domain.Account{card("principal", ""), card("idle", "principal")}

	st := billing.Consolidate(family, cycle, nil)

	if total, ok := st.PerCardTotals["idle"]; !ok || total != 0 {
		t.Errorf("idle member should be present with total 0, got %v (present=%v)", total, ok)
	}
	if list, ok := st.TransactionsByCard["idle"]; !ok || len(list) != 0 {
		t.Errorf("idle member should have an empty transaction list")
	}
	if st.GlobalTotal != 0 {
		t.Errorf("global total of empty statement should be 0, got %.2f", st.GlobalTotal)
	}
}

// TestConsolidate_GlobalEqualsSum checks the aggregation invariant on
// a generated workload: the global total always equals the sum of the
// per-card totals.
func TestConsolidate_GlobalEqualsSum(t *testing.T) {
	cycle := marchCycle(t)
	family := []domain.Account{card("a", ""), card("b", "a"), card("c", "a")}
	ids := []string{"a", "b", "c", "checking", "other"}

	rng := rand.New(rand.NewSource(7))
	var txns []domain.Transaction
	for i := 0; i < 200; i++ {
		day := cycle.Opening.AddDate(0, 0, rng.Intn(40)-5)
		from := ids[rng.Intn(len(ids))]
		if rng.Intn(2) == 0 {
			txns = append(txns, expense(idOf(i), from, float64(rng.Intn(10000))/100, day))
		} else {
			to := ids[rng.Intn(len(ids))]
			txns = append(txns, transfer(idOf(i), from, to, float64(rng.Intn(10000))/100, day))
		}
	}

	st := billing.Consolidate(family, cycle, txns)
	var sum float64
	for _, v := range st.PerCardTotals {
		sum += v
	}
	if diff := st.GlobalTotal - sum; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("global total %.4f != sum of per-card totals %.4f", st.GlobalTotal, sum)
	}
}

// TestConsolidate_Deterministic shuffles the input and checks that
// totals and per-card ordering do not depend on iteration order.
func TestConsolidate_Deterministic(t *testing.T) {
	cycle := marchCycle(t)
	family := []domain.Account{card("principal", ""), card("supp", "principal")}

	sameDay := date(2026, time.February, 14)
	txns := []domain.Transaction{
		expense("t-b", "principal", 10, sameDay),
		expense("t-a", "principal", 20, sameDay),
		expense("t-c", "supp", 30, date(2026, time.February, 28)),
		transfer("t-d", "checking", "principal", 15, date(2026, time.March, 2)),
	}

	first := billing.Consolidate(family, cycle, txns)

	shuffled := make([]domain.Transaction, len(txns))
	copy(shuffled, txns)
	rand.New(rand.NewSource(3)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	second := billing.Consolidate(family, cycle, shuffled)

	if first.GlobalTotal != second.GlobalTotal {
		t.Fatalf("totals differ across input orders: %.2f vs %.2f", first.GlobalTotal, second.GlobalTotal)
	}
	for id := range first.TransactionsByCard {
		a, b := first.TransactionsByCard[id], second.TransactionsByCard[id]
		if len(a) != len(b) {
			t.Fatalf("card %s: list lengths differ", id)
		}
		for i := range a {
			if a[i].ID != b[i].ID {
				t.Errorf("card %s position %d: %s vs %s", id, i, a[i].ID, b[i].ID)
			}
		}
	}

	// most recent first
	list := first.TransactionsByCard["principal"]
	for i := 1; i < len(list); i++ {
		if list[i].Date.After(list[i-1].Date) {
			t.Errorf("transactions not most-recent-first at position %d", i)
		}
	}
}

func idOf(i int) string {
	return fmt.Sprintf("t-%03d", i)
}
