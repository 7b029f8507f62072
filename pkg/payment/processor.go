// Package payment settles orders with single or split payments.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos_settlement/pkg/apperr"
	"pos_settlement/pkg/database"
	"pos_settlement/pkg/ledger"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/release"
	"pos_settlement/pkg/services"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Gateway confirms card/upi captures before money is booked.
type Gateway interface {
	VerifyPayment(ctx context.Context, check services.GatewayCheck) error
}

// Notifier receives post-commit side effects. Calls must not block.
type Notifier interface {
	PublishAsync(topic string, payload services.EventPayload) bool
	SendReceiptAsync(phone string, invoice services.ReceiptInvoice, outlet services.ReceiptOutlet) bool
}

// Options configures a Processor.
type Options struct {
	Location   *time.Location
	Now        func() time.Time
	MaxRetries int
	Backoff    time.Duration
}

// Processor records payments and drives orders to settlement.
type Processor struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	release  *release.Coordinator
	gateway  Gateway
	notifier Notifier

	loc     *time.Location
	now     func() time.Time
	retries int
	backoff time.Duration
}

// NewProcessor wires a Processor. gateway may be nil to skip verification.
func NewProcessor(db *gorm.DB, l *ledger.Ledger, rc *release.Coordinator, gateway Gateway, notifier Notifier, opts Options) *Processor {
	p := &Processor{
		db:       db,
		ledger:   l,
		release:  rc,
		gateway:  gateway,
		notifier: notifier,
		loc:      opts.Location,
		now:      opts.Now,
		retries:  opts.MaxRetries,
		backoff:  opts.Backoff,
	}
	if p.loc == nil {
		p.loc = time.UTC
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.retries < 1 {
		p.retries = 3
	}
	if p.backoff == 0 {
		p.backoff = 25 * time.Millisecond
	}
	return p
}

// SinglePaymentRequest settles part or all of an order in one mode.
type SinglePaymentRequest struct {
	OrderID          int
	OutletID         int
	Mode             models.PaymentMode
	Amount           decimal.Decimal
	Tip              decimal.Decimal
	Reference        *string
	GatewayPaymentID *string
	GatewayOrderID   string
	GatewaySignature string
	Metadata         models.JSONMap
	ReceivedBy       *int
}

// SplitEntry is one leg of a split payment.
type SplitEntry struct {
	Mode             models.PaymentMode
	Amount           decimal.Decimal
	Reference        *string
	GatewayPaymentID *string
}

// SplitPaymentRequest settles an order across several modes at once.
type SplitPaymentRequest struct {
	OrderID    int
	OutletID   int
	Splits     []SplitEntry
	Metadata   models.JSONMap
	ReceivedBy *int
}

// Result is the committed outcome of a settlement.
type Result struct {
	Payment       models.Payment           `json:"payment"`
	Order         models.Order             `json:"order"`
	Settled       bool                     `json:"settled"`
	LedgerEntries []models.CashLedgerEntry `json:"ledgerEntries"`
	Release       *release.Result          `json:"release,omitempty"`
}

// ProcessSinglePayment validates and books a single-mode payment.
func (p *Processor) ProcessSinglePayment(ctx context.Context, req SinglePaymentRequest) (*Result, error) {
	amount := req.Amount.Round(2)
	tip := req.Tip.Round(2)
	if !amount.IsPositive() {
		return nil, apperr.New(apperr.CodeInvalidAmount, "amount must be greater than zero")
	}
	if tip.IsNegative() {
		return nil, apperr.New(apperr.CodeInvalidAmount, "tip cannot be negative")
	}
	if !req.Mode.Valid() || req.Mode == models.PaymentModeSplit {
		return nil, apperr.New(apperr.CodeInvalidPaymentMode, fmt.Sprintf("invalid payment mode %q", req.Mode))
	}

	plan := settlementPlan{
		mode:             req.Mode,
		amount:           amount,
		tip:              tip,
		reference:        req.Reference,
		gatewayPaymentID: req.GatewayPaymentID,
		metadata:         req.Metadata,
		receivedBy:       req.ReceivedBy,
	}
	if req.Mode == models.PaymentModeCash {
		plan.cash = []decimal.Decimal{amount.Add(tip)}
	}

	var checks []services.GatewayCheck
	if req.Mode.IsGateway() && req.GatewayPaymentID != nil && *req.GatewayPaymentID != "" {
		checks = append(checks, services.GatewayCheck{
			PaymentID: *req.GatewayPaymentID,
			OrderID:   req.GatewayOrderID,
			Signature: req.GatewaySignature,
			Amount:    amount.Add(tip),
		})
	}

	return p.run(ctx, req.OrderID, req.OutletID, plan, checks)
}

// ProcessSplitPayment books one split payment whose legs must cover the
// outstanding amount. It always completes the order.
func (p *Processor) ProcessSplitPayment(ctx context.Context, req SplitPaymentRequest) (*Result, error) {
	if len(req.Splits) == 0 {
		return nil, apperr.New(apperr.CodeInvalidAmount, "at least one split is required")
	}

	total := decimal.Zero
	plan := settlementPlan{
		mode:       models.PaymentModeSplit,
		tip:        decimal.Zero,
		metadata:   req.Metadata,
		receivedBy: req.ReceivedBy,
	}
	var checks []services.GatewayCheck
	for i, s := range req.Splits {
		amount := s.Amount.Round(2)
		if !amount.IsPositive() {
			return nil, apperr.New(apperr.CodeInvalidAmount, fmt.Sprintf("split %d amount must be greater than zero", i+1))
		}
		if !s.Mode.Valid() || s.Mode == models.PaymentModeSplit {
			return nil, apperr.New(apperr.CodeInvalidPaymentMode, fmt.Sprintf("invalid mode %q for split %d", s.Mode, i+1))
		}
		total = total.Add(amount)
		plan.splits = append(plan.splits, models.SplitPaymentEntry{
			Mode:             s.Mode,
			Amount:           amount,
			Reference:        s.Reference,
			GatewayPaymentID: s.GatewayPaymentID,
		})
		if s.Mode == models.PaymentModeCash {
			plan.cash = append(plan.cash, amount)
		}
		if s.Mode.IsGateway() && s.GatewayPaymentID != nil && *s.GatewayPaymentID != "" {
			checks = append(checks, services.GatewayCheck{PaymentID: *s.GatewayPaymentID, Amount: amount})
		}
	}
	plan.amount = total
	plan.requireFull = true

	return p.run(ctx, req.OrderID, req.OutletID, plan, checks)
}

// ListPayments returns an order's payments with their split legs.
func (p *Processor) ListPayments(ctx context.Context, orderID int) ([]models.Payment, error) {
	var payments []models.Payment
	if err := p.db.WithContext(ctx).
		Preload("Splits").
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (p *Processor) run(ctx context.Context, orderID, outletID int, plan settlementPlan, checks []services.GatewayCheck) (*Result, error) {
	verified := false
	var result *Result

	err := database.WithRetry(ctx, p.retries, p.backoff, func(attempt int) error {
		order, err := p.precheck(ctx, orderID, outletID)
		if err != nil {
			return err
		}
		if plan.requireFull && plan.amount.LessThan(order.OutstandingAmount()) {
			return apperr.New(apperr.CodeSplitInsufficient,
				fmt.Sprintf("splits total %s but %s is due", plan.amount.StringFixed(2), order.OutstandingAmount().StringFixed(2)))
		}

		if !verified {
			if err := p.verifyGateway(ctx, checks); err != nil {
				return err
			}
			verified = true
		}

		return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res, err := p.settle(tx, order.ID, order.OutletID, plan)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	p.notify(ctx, result)
	return result, nil
}

// precheck reads the order outside any transaction and rejects anything
// that cannot be settled.
func (p *Processor) precheck(ctx context.Context, orderID, outletID int) (*models.Order, error) {
	var order models.Order
	err := p.db.WithContext(ctx).First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeOrderNotFound, "order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if order.IsSettled() {
		return nil, apperr.New(apperr.CodeOrderAlreadyPaid, "order already paid")
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, apperr.New(apperr.CodeOrderNotPayable, "order is cancelled")
	}

	if outletID == 0 {
		outletID = order.OutletID
	}
	if outletID == 0 {
		return nil, apperr.New(apperr.CodeOutletRequired, "outlet id required")
	}
	if outletID != order.OutletID {
		return nil, apperr.New(apperr.CodeOutletMismatch, "order belongs to a different outlet")
	}

	return &order, nil
}

func (p *Processor) verifyGateway(ctx context.Context, checks []services.GatewayCheck) error {
	if p.gateway == nil {
		return nil
	}
	for _, check := range checks {
		if err := p.gateway.VerifyPayment(ctx, check); err != nil {
			return err
		}
	}
	return nil
}
