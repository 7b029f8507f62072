package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pos_settlement/pkg/apperr"
	"pos_settlement/pkg/ledger"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/release"
	"pos_settlement/pkg/services"
	"pos_settlement/pkg/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu       sync.Mutex
	topics   []string
	receipts []string
}

func (n *recordingNotifier) PublishAsync(topic string, _ services.EventPayload) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
	return true
}

func (n *recordingNotifier) SendReceiptAsync(phone string, invoice services.ReceiptInvoice, _ services.ReceiptOutlet) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, phone+":"+invoice.InvoiceNumber)
	return true
}

func (n *recordingNotifier) has(topic string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.topics {
		if t == topic {
			return true
		}
	}
	return false
}

type stubGateway struct {
	err    error
	checks []services.GatewayCheck
}

func (g *stubGateway) VerifyPayment(_ context.Context, check services.GatewayCheck) error {
	g.checks = append(g.checks, check)
	return g.err
}

type fixture struct {
	db       *gorm.DB
	clock    *testutil.Clock
	ledger   *ledger.Ledger
	proc     *Processor
	notifier *recordingNotifier
	gateway  *stubGateway
	outlet   models.Outlet
	cashier  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	clock := testutil.NewClock(time.Date(2024, time.March, 7, 6, 0, 0, 0, time.UTC))
	l := ledger.New(db, ledger.Options{Location: time.UTC, Now: clock.Now})
	notifier := &recordingNotifier{}
	gateway := &stubGateway{}
	proc := NewProcessor(db, l, release.NewCoordinator(clock.Now), gateway, notifier, Options{
		Location:   time.UTC,
		Now:        clock.Now,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
	})
	outlet := testutil.SeedOutlet(t, db, "Main")
	cashier := testutil.SeedUser(t, db, outlet.ID, "cashier@example.com", models.RoleStaff)
	return &fixture{db: db, clock: clock, ledger: l, proc: proc, notifier: notifier, gateway: gateway, outlet: outlet, cashier: cashier}
}

func (f *fixture) ledgerEntries(t *testing.T) []models.CashLedgerEntry {
	t.Helper()
	var entries []models.CashLedgerEntry
	if err := f.db.Where("outlet_id = ?", f.outlet.ID).Order("id ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return entries
}

func (f *fixture) reloadOrder(t *testing.T, id int) models.Order {
	t.Helper()
	var order models.Order
	if err := f.db.First(&order, id).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return order
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSingleCashPaymentSettlesTableOrder(t *testing.T) {
	f := newFixture(t)
	table := testutil.SeedTable(t, f.db, f.outlet.ID, "T1", 4, models.TableStatusOccupied)
	session := testutil.SeedTableSession(t, f.db, table, f.clock.Now().Add(-time.Hour))
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{
		OutletID:       f.outlet.ID,
		Total:          "500",
		TableID:        &table.ID,
		TableSessionID: &session.ID,
		CustomerPhone:  testutil.StrPtr("9000000001"),
		WithInvoice:    true,
	})
	testutil.SeedTicket(t, f.db, order, models.KitchenStatusPreparing, models.KitchenStatusPending)

	result, err := f.proc.ProcessSinglePayment(context.Background(), SinglePaymentRequest{
		OrderID:    order.ID,
		Mode:       models.PaymentModeCash,
		Amount:     dec("500"),
		ReceivedBy: &f.cashier.ID,
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}

	if !result.Settled {
		t.Fatal("expected settled result")
	}
	if result.Payment.PaymentNumber != "PAY2403070001" {
		t.Fatalf("payment number = %s", result.Payment.PaymentNumber)
	}

	got := f.reloadOrder(t, order.ID)
	if got.Status != models.OrderStatusCompleted || got.PaymentStatus != models.BillStatusCompleted {
		t.Fatalf("order status = %s/%s", got.Status, got.PaymentStatus)
	}
	if got.CompletedAt == nil {
		t.Fatal("completedAt not set")
	}
	testutil.AssertDec(t, "paid", got.PaidAmount, "500")
	testutil.AssertDec(t, "due", got.DueAmount, "0")

	entries := f.ledgerEntries(t)
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	if entries[0].TransactionType != models.LedgerEntrySale {
		t.Fatalf("entry type = %s", entries[0].TransactionType)
	}
	testutil.AssertDec(t, "ledger amount", entries[0].Amount, "500")

	var tbl models.DiningTable
	f.db.First(&tbl, table.ID)
	if tbl.Status != models.TableStatusAvailable {
		t.Fatalf("table status = %s", tbl.Status)
	}
	var s models.TableSession
	f.db.First(&s, session.ID)
	if s.Status != models.TableSessionCompleted {
		t.Fatalf("session status = %s", s.Status)
	}

	var invoice models.Invoice
	f.db.Where("order_id = ?", order.ID).First(&invoice)
	if invoice.PaymentStatus != models.BillStatusCompleted || invoice.PaidAt == nil {
		t.Fatalf("invoice = %+v", invoice)
	}

	for _, topic := range []string{services.TopicOrderUpdate, services.TopicBillStatus, services.TopicTableUpdate, services.TopicKOTUpdate} {
		if !f.notifier.has(topic) {
			t.Errorf("missing %s event", topic)
		}
	}
	if len(f.notifier.receipts) != 1 || f.notifier.receipts[0] != "9000000001:INV-ORD1" {
		t.Fatalf("receipts = %v", f.notifier.receipts)
	}

	var logs int64
	f.db.Model(&models.AuditLog{}).Where("entity_type = ? AND entity_id = ?", "payment", result.Payment.ID).Count(&logs)
	if logs != 1 {
		t.Fatalf("audit logs = %d", logs)
	}
}

func TestSplitPaymentBooksOnlyCashInLedger(t *testing.T) {
	f := newFixture(t)
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "500"})

	result, err := f.proc.ProcessSplitPayment(context.Background(), SplitPaymentRequest{
		OrderID: order.ID,
		Splits: []SplitEntry{
			{Mode: models.PaymentModeCash, Amount: dec("300")},
			{Mode: models.PaymentModeCard, Amount: dec("200"), Reference: testutil.StrPtr("4242")},
		},
		ReceivedBy: &f.cashier.ID,
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	var payments []models.Payment
	f.db.Preload("Splits").Where("order_id = ?", order.ID).Find(&payments)
	if len(payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(payments))
	}
	if payments[0].Mode != models.PaymentModeSplit || len(payments[0].Splits) != 2 {
		t.Fatalf("payment = %+v", payments[0])
	}
	testutil.AssertDec(t, "total", payments[0].TotalAmount, "500")

	entries := f.ledgerEntries(t)
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	testutil.AssertDec(t, "cash leg", entries[0].Amount, "300")

	if result.Order.Status != models.OrderStatusCompleted {
		t.Fatalf("order status = %s", result.Order.Status)
	}
}

func TestSplitPaymentMustCoverDue(t *testing.T) {
	f := newFixture(t)
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "500"})

	_, err := f.proc.ProcessSplitPayment(context.Background(), SplitPaymentRequest{
		OrderID: order.ID,
		Splits: []SplitEntry{
			{Mode: models.PaymentModeCash, Amount: dec("100")},
			{Mode: models.PaymentModeUPI, Amount: dec("100")},
		},
	})
	if apperr.CodeOf(err) != apperr.CodeSplitInsufficient {
		t.Fatalf("err = %v", err)
	}

	var count int64
	f.db.Model(&models.Payment{}).Count(&count)
	if count != 0 {
		t.Fatalf("payments written = %d", count)
	}
}

func TestPartialPaymentsSumToPaid(t *testing.T) {
	f := newFixture(t)
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "500", WithInvoice: true})
	ctx := context.Background()

	first, err := f.proc.ProcessSinglePayment(ctx, SinglePaymentRequest{OrderID: order.ID, Mode: models.PaymentModeCard, Amount: dec("199.99")})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Settled || first.Order.PaymentStatus != models.BillStatusPartial {
		t.Fatalf("first result = %+v", first.Order)
	}
	testutil.AssertDec(t, "due after first", first.Order.DueAmount, "300.01")

	var invoice models.Invoice
	f.db.Where("order_id = ?", order.ID).First(&invoice)
	if invoice.PaymentStatus != models.BillStatusPartial {
		t.Fatalf("invoice status = %s", invoice.PaymentStatus)
	}

	second, err := f.proc.ProcessSinglePayment(ctx, SinglePaymentRequest{OrderID: order.ID, Mode: models.PaymentModeCash, Amount: dec("300.01")})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Payment.PaymentNumber != "PAY2403070002" {
		t.Fatalf("second number = %s", second.Payment.PaymentNumber)
	}

	got := f.reloadOrder(t, order.ID)
	payments, err := f.proc.ListPayments(ctx, order.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sum := decimal.Zero
	for _, p := range payments {
		if p.Status == models.PaymentStatusCompleted {
			sum = sum.Add(p.TotalAmount)
		}
	}
	if !sum.Equal(got.PaidAmount) {
		t.Fatalf("Σ payments %s != paid %s", sum, got.PaidAmount)
	}
	testutil.AssertDec(t, "due", got.DueAmount, "0")
	if got.Status != models.OrderStatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestTipCountsTowardPaid(t *testing.T) {
	f := newFixture(t)
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "500"})

	result, err := f.proc.ProcessSinglePayment(context.Background(), SinglePaymentRequest{
		OrderID: order.ID,
		Mode:    models.PaymentModeCash,
		Amount:  dec("500"),
		Tip:     dec("50"),
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	testutil.AssertDec(t, "total", result.Payment.TotalAmount, "550")
	testutil.AssertDec(t, "paid", result.Order.PaidAmount, "550")
	testutil.AssertDec(t, "due", result.Order.DueAmount, "0")
	testutil.AssertDec(t, "ledger", result.LedgerEntries[0].Amount, "550")
}

func TestSettledOrderIsRejected(t *testing.T) {
	f := newFixture(t)
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "120"})
	ctx := context.Background()

	if _, err := f.proc.ProcessSinglePayment(ctx, SinglePaymentRequest{OrderID: order.ID, Mode: models.PaymentModeCash, Amount: dec("120")}); err != nil {
		t.Fatalf("first: %v", err)
	}

	_, err := f.proc.ProcessSinglePayment(ctx, SinglePaymentRequest{OrderID: order.ID, Mode: models.PaymentModeCash, Amount: dec("10")})
	if apperr.CodeOf(err) != apperr.CodeOrderAlreadyPaid {
		t.Fatalf("err = %v", err)
	}
	_, err = f.proc.ProcessSplitPayment(ctx, SplitPaymentRequest{OrderID: order.ID, Splits: []SplitEntry{{Mode: models.PaymentModeCash, Amount: dec("10")}}})
	if apperr.CodeOf(err) != apperr.CodeOrderAlreadyPaid {
		t.Fatalf("split err = %v", err)
	}

	var payments int64
	f.db.Model(&models.Payment{}).Count(&payments)
	if payments != 1 {
		t.Fatalf("payments = %d", payments)
	}
	if n := len(f.ledgerEntries(t)); n != 1 {
		t.Fatalf("ledger entries = %d", n)
	}
}

func TestConcurrentSettlementHasOneWinner(t *testing.T) {
	f := newFixture(t)
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "500"})

	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.proc.ProcessSinglePayment(context.Background(), SinglePaymentRequest{
				OrderID: order.ID,
				Mode:    models.PaymentModeCash,
				Amount:  dec("500"),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperr.CodeOf(err) == apperr.CodeOrderAlreadyPaid, apperr.CodeOf(err) == apperr.CodeConflict:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}

	var payments int64
	f.db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&payments)
	if payments != 1 {
		t.Fatalf("payments = %d, want 1", payments)
	}
	if n := len(f.ledgerEntries(t)); n != 1 {
		t.Fatalf("ledger entries = %d, want 1", n)
	}
	got := f.reloadOrder(t, order.ID)
	testutil.AssertDec(t, "paid", got.PaidAmount, "500")
}

func TestInvalidRequests(t *testing.T) {
	f := newFixture(t)
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "100"})
	cancelled := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "100", Status: models.OrderStatusCancelled})
	other := testutil.SeedOutlet(t, f.db, "Other")
	ctx := context.Background()

	cases := []struct {
		name string
		req  SinglePaymentRequest
		want apperr.Code
	}{
		{"zero amount", SinglePaymentRequest{OrderID: order.ID, Mode: models.PaymentModeCash, Amount: dec("0")}, apperr.CodeInvalidAmount},
		{"negative tip", SinglePaymentRequest{OrderID: order.ID, Mode: models.PaymentModeCash, Amount: dec("10"), Tip: dec("-1")}, apperr.CodeInvalidAmount},
		{"unknown mode", SinglePaymentRequest{OrderID: order.ID, Mode: "bitcoin", Amount: dec("10")}, apperr.CodeInvalidPaymentMode},
		{"split as single", SinglePaymentRequest{OrderID: order.ID, Mode: models.PaymentModeSplit, Amount: dec("10")}, apperr.CodeInvalidPaymentMode},
		{"missing order", SinglePaymentRequest{OrderID: 9999, Mode: models.PaymentModeCash, Amount: dec("10")}, apperr.CodeOrderNotFound},
		{"cancelled order", SinglePaymentRequest{OrderID: cancelled.ID, Mode: models.PaymentModeCash, Amount: dec("10")}, apperr.CodeOrderNotPayable},
		{"outlet mismatch", SinglePaymentRequest{OrderID: order.ID, OutletID: other.ID, Mode: models.PaymentModeCash, Amount: dec("10")}, apperr.CodeOutletMismatch},
	}
	for _, tc := range cases {
		_, err := f.proc.ProcessSinglePayment(ctx, tc.req)
		if apperr.CodeOf(err) != tc.want {
			t.Errorf("%s: err = %v, want %s", tc.name, err, tc.want)
		}
	}

	var payments int64
	f.db.Model(&models.Payment{}).Count(&payments)
	if payments != 0 {
		t.Fatalf("payments written = %d", payments)
	}
}

func TestGatewayRejectionWritesNothing(t *testing.T) {
	f := newFixture(t)
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "250"})
	f.gateway.err = apperr.New(apperr.CodeGatewayVerificationFailed, "not captured")

	_, err := f.proc.ProcessSinglePayment(context.Background(), SinglePaymentRequest{
		OrderID:          order.ID,
		Mode:             models.PaymentModeUPI,
		Amount:           dec("250"),
		GatewayPaymentID: testutil.StrPtr("pay_123"),
	})
	if apperr.CodeOf(err) != apperr.CodeGatewayVerificationFailed {
		t.Fatalf("err = %v", err)
	}
	if len(f.gateway.checks) != 1 || f.gateway.checks[0].PaymentID != "pay_123" {
		t.Fatalf("checks = %+v", f.gateway.checks)
	}
	testutil.AssertDec(t, "checked amount", f.gateway.checks[0].Amount, "250")

	got := f.reloadOrder(t, order.ID)
	if got.PaymentStatus != models.BillStatusPending {
		t.Fatalf("order touched: %s", got.PaymentStatus)
	}
}

func TestReleaseFailureRollsBackSettlement(t *testing.T) {
	f := newFixture(t)
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{
		OutletID: f.outlet.ID,
		Total:    "400",
		TableID:  testutil.IntPtr(9999),
	})

	_, err := f.proc.ProcessSinglePayment(context.Background(), SinglePaymentRequest{
		OrderID:    order.ID,
		Mode:       models.PaymentModeCash,
		Amount:     dec("400"),
		ReceivedBy: &f.cashier.ID,
	})
	if err == nil {
		t.Fatal("expected settlement to fail on a missing table")
	}

	var payments, logs int64
	f.db.Model(&models.Payment{}).Count(&payments)
	f.db.Model(&models.AuditLog{}).Count(&logs)
	if payments != 0 || logs != 0 {
		t.Errorf("payments = %d, audit logs = %d, want none", payments, logs)
	}
	if entries := f.ledgerEntries(t); len(entries) != 0 {
		t.Errorf("ledger entries = %d, want none", len(entries))
	}

	got := f.reloadOrder(t, order.ID)
	if got.Status != models.OrderStatusOpen || got.PaymentStatus != models.BillStatusPending {
		t.Errorf("order status = %s/%s", got.Status, got.PaymentStatus)
	}
	testutil.AssertDec(t, "paid", got.PaidAmount, "0")
	if f.notifier.has(services.TopicBillStatus) {
		t.Error("payment event published for a rolled back settlement")
	}
}

func TestGatewayNotCalledWithoutReference(t *testing.T) {
	f := newFixture(t)
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "250"})
	f.gateway.err = errors.New("should not be called")

	if _, err := f.proc.ProcessSinglePayment(context.Background(), SinglePaymentRequest{
		OrderID: order.ID,
		Mode:    models.PaymentModeCard,
		Amount:  dec("250"),
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if len(f.gateway.checks) != 0 {
		t.Fatal("gateway consulted without a gateway payment id")
	}
}

func TestPaymentNumberUsesOutletLocalDate(t *testing.T) {
	f := newFixture(t)
	ist := time.FixedZone("IST", 5*3600+1800)
	f.clock = testutil.NewClock(time.Date(2024, time.March, 7, 20, 0, 0, 0, time.UTC))
	proc := NewProcessor(f.db, ledger.New(f.db, ledger.Options{Location: ist, Now: f.clock.Now}),
		release.NewCoordinator(f.clock.Now), nil, nil, Options{Location: ist, Now: f.clock.Now})
	order := testutil.SeedOrder(t, f.db, testutil.OrderSeed{OutletID: f.outlet.ID, Total: "10"})

	result, err := proc.ProcessSinglePayment(context.Background(), SinglePaymentRequest{OrderID: order.ID, Mode: models.PaymentModeCash, Amount: dec("10")})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if result.Payment.PaymentNumber != "PAY2403080001" {
		t.Fatalf("number = %s", result.Payment.PaymentNumber)
	}
	if result.Payment.BusinessDate != "2024-03-08" || result.LedgerEntries[0].BusinessDate != "2024-03-08" {
		t.Fatalf("business dates = %s / %s", result.Payment.BusinessDate, result.LedgerEntries[0].BusinessDate)
	}
}
