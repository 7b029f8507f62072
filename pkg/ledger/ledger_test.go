package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"pos_settlement/pkg/apperr"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/testutil"

	"gorm.io/gorm"
)

func newTestLedger(t *testing.T) (*Ledger, *gorm.DB, *testutil.Clock) {
	t.Helper()
	db := testutil.OpenDB(t)
	clock := testutil.NewClock(time.Date(2024, time.March, 7, 6, 0, 0, 0, time.UTC))
	l := New(db, Options{Location: time.UTC, Now: clock.Now, MaxRetries: 3, Backoff: time.Millisecond})
	return l, db, clock
}

func appendTx(t *testing.T, l *Ledger, db *gorm.DB, outletID int, typ models.LedgerEntryType, amount string) *models.CashLedgerEntry {
	t.Helper()
	var entry *models.CashLedgerEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = l.Append(tx, AppendParams{OutletID: outletID, Type: typ, Amount: testutil.Dec(t, amount)})
		return err
	})
	if err != nil {
		t.Fatalf("append %s %s: %v", typ, amount, err)
	}
	return entry
}

func TestAppendChainsBalances(t *testing.T) {
	l, db, _ := newTestLedger(t)
	outlet := testutil.SeedOutlet(t, db, "Main")

	first := appendTx(t, l, db, outlet.ID, models.LedgerEntryOpening, "1000")
	second := appendTx(t, l, db, outlet.ID, models.LedgerEntrySale, "250.50")
	third := appendTx(t, l, db, outlet.ID, models.LedgerEntryRefund, "-100")

	testutil.AssertDec(t, "first.before", first.BalanceBefore, "0")
	testutil.AssertDec(t, "first.after", first.BalanceAfter, "1000")
	testutil.AssertDec(t, "second.before", second.BalanceBefore, "1000")
	testutil.AssertDec(t, "second.after", second.BalanceAfter, "1250.50")
	testutil.AssertDec(t, "third.after", third.BalanceAfter, "1150.50")

	balance, err := l.Balance(context.Background(), outlet.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	testutil.AssertDec(t, "balance", balance, "1150.50")

	report, err := l.Verify(context.Background(), outlet.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Valid || report.Entries != 3 {
		t.Fatalf("report = %+v", report)
	}
}

func TestAppendKeepsOutletsSeparate(t *testing.T) {
	l, db, _ := newTestLedger(t)
	a := testutil.SeedOutlet(t, db, "A")
	b := testutil.SeedOutlet(t, db, "B")

	appendTx(t, l, db, a.ID, models.LedgerEntrySale, "100")
	entry := appendTx(t, l, db, b.ID, models.LedgerEntrySale, "40")

	testutil.AssertDec(t, "b.before", entry.BalanceBefore, "0")
	balance, _ := l.Balance(context.Background(), a.ID)
	testutil.AssertDec(t, "a.balance", balance, "100")
}

func TestAppendRejectsUnknownType(t *testing.T) {
	l, db, _ := newTestLedger(t)
	outlet := testutil.SeedOutlet(t, db, "Main")

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := l.Append(tx, AppendParams{OutletID: outlet.ID, Type: "tip", Amount: testutil.Dec(t, "1")})
		return err
	})
	if apperr.CodeOf(err) != apperr.CodeInvalidLedgerType {
		t.Fatalf("err = %v", err)
	}
}

func TestConcurrentMovementsKeepChainIntact(t *testing.T) {
	l, db, _ := newTestLedger(t)
	outlet := testutil.SeedOutlet(t, db, "Main")

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			typ := models.LedgerEntryCashIn
			if i%4 == 0 {
				typ = models.LedgerEntryCashOut
			}
			_, err := l.RecordMovement(context.Background(), MovementParams{
				OutletID: outlet.ID,
				Type:     typ,
				Amount:   testutil.Dec(t, "10"),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("movement: %v", err)
		}
	}

	report, err := l.Verify(context.Background(), outlet.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Valid {
		t.Fatalf("chain broken: %+v", report)
	}
	if report.Entries != writers {
		t.Fatalf("entries = %d", report.Entries)
	}
	// 15 cash_in, 5 cash_out
	testutil.AssertDec(t, "balance", report.Balance, "100")
}

func TestRecordMovementNormalizesSign(t *testing.T) {
	l, db, _ := newTestLedger(t)
	outlet := testutil.SeedOutlet(t, db, "Main")
	ctx := context.Background()

	in, err := l.RecordMovement(ctx, MovementParams{OutletID: outlet.ID, Type: models.LedgerEntryCashIn, Amount: testutil.Dec(t, "-50")})
	if err != nil {
		t.Fatalf("cash_in: %v", err)
	}
	testutil.AssertDec(t, "cash_in", in.Amount, "50")

	out, err := l.RecordMovement(ctx, MovementParams{OutletID: outlet.ID, Type: models.LedgerEntryExpense, Amount: testutil.Dec(t, "20")})
	if err != nil {
		t.Fatalf("expense: %v", err)
	}
	testutil.AssertDec(t, "expense", out.Amount, "-20")
	testutil.AssertDec(t, "balance", out.BalanceAfter, "30")

	if _, err := l.RecordMovement(ctx, MovementParams{OutletID: outlet.ID, Type: models.LedgerEntrySale, Amount: testutil.Dec(t, "5")}); apperr.CodeOf(err) != apperr.CodeInvalidLedgerType {
		t.Fatalf("sale movement err = %v", err)
	}
	if _, err := l.RecordMovement(ctx, MovementParams{OutletID: outlet.ID, Type: models.LedgerEntryCashIn, Amount: testutil.Dec(t, "0")}); apperr.CodeOf(err) != apperr.CodeInvalidAmount {
		t.Fatalf("zero movement err = %v", err)
	}

	var logs int64
	db.Model(&models.AuditLog{}).Where("entity_type = ?", "cash_ledger").Count(&logs)
	if logs != 2 {
		t.Fatalf("audit logs = %d, want 2", logs)
	}
}

func TestTotalsAndExpectedCash(t *testing.T) {
	l, db, clock := newTestLedger(t)
	outlet := testutil.SeedOutlet(t, db, "Main")

	appendTx(t, l, db, outlet.ID, models.LedgerEntryOpening, "1000")
	appendTx(t, l, db, outlet.ID, models.LedgerEntrySale, "200")
	appendTx(t, l, db, outlet.ID, models.LedgerEntrySale, "150.25")
	appendTx(t, l, db, outlet.ID, models.LedgerEntryCashIn, "50")
	appendTx(t, l, db, outlet.ID, models.LedgerEntryCashOut, "-30")
	appendTx(t, l, db, outlet.ID, models.LedgerEntryRefund, "-20.25")
	appendTx(t, l, db, outlet.ID, models.LedgerEntryExpense, "-10")

	// Next day's entry stays out of today's totals
	clock.Advance(24 * time.Hour)
	appendTx(t, l, db, outlet.ID, models.LedgerEntrySale, "999")

	totals, err := l.Totals(context.Background(), outlet.ID, "2024-03-07")
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	testutil.AssertDec(t, "sale", totals.Get(models.LedgerEntrySale), "350.25")
	testutil.AssertDec(t, "closing", totals.Get(models.LedgerEntryClosing), "0")
	testutil.AssertDec(t, "expected", totals.ExpectedCash(testutil.Dec(t, "1000")), "1340")
}

func TestRecentIsNewestFirstAndBounded(t *testing.T) {
	l, db, _ := newTestLedger(t)
	outlet := testutil.SeedOutlet(t, db, "Main")
	for i := 0; i < 5; i++ {
		appendTx(t, l, db, outlet.ID, models.LedgerEntryCashIn, "1")
	}

	entries, err := l.Recent(context.Background(), outlet.ID, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d", len(entries))
	}
	if entries[0].ID < entries[1].ID {
		t.Fatal("entries not newest first")
	}
	testutil.AssertDec(t, "newest", entries[0].BalanceAfter, "5")
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l, db, _ := newTestLedger(t)
	outlet := testutil.SeedOutlet(t, db, "Main")
	appendTx(t, l, db, outlet.ID, models.LedgerEntryOpening, "100")
	second := appendTx(t, l, db, outlet.ID, models.LedgerEntrySale, "50")
	appendTx(t, l, db, outlet.ID, models.LedgerEntrySale, "25")

	if err := db.Model(&models.CashLedgerEntry{}).Where("id = ?", second.ID).
		Update("balance_after", testutil.Dec(t, "160")).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}

	report, err := l.Verify(context.Background(), outlet.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Valid || report.BrokenEntry == nil || *report.BrokenEntry != second.ID {
		t.Fatalf("report = %+v", report)
	}
}

func TestDrainZeroesBalance(t *testing.T) {
	l, db, _ := newTestLedger(t)
	outlet := testutil.SeedOutlet(t, db, "Main")
	appendTx(t, l, db, outlet.ID, models.LedgerEntryOpening, "700")

	var entry *models.CashLedgerEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = l.Drain(tx, AppendParams{OutletID: outlet.ID, Type: models.LedgerEntryClosing})
		return err
	})
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	testutil.AssertDec(t, "amount", entry.Amount, "-700")
	testutil.AssertDec(t, "after", entry.BalanceAfter, "0")
}
