// Package ledger maintains the per-outlet append-only cash ledger.
//
// Every append locks the outlet's cash_ledger_heads row before reading the
// running balance, so concurrent writers for one outlet serialize on that row
// and writers for different outlets never contend.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos_settlement/pkg/apperr"
	"pos_settlement/pkg/audit"
	"pos_settlement/pkg/database"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// Options configures a Ledger.
type Options struct {
	Location   *time.Location
	Now        func() time.Time
	MaxRetries int
	Backoff    time.Duration
}

// Ledger appends and reads cash ledger entries.
type Ledger struct {
	db      *gorm.DB
	loc     *time.Location
	now     func() time.Time
	retries int
	backoff time.Duration
}

// New returns a Ledger backed by db.
func New(db *gorm.DB, opts Options) *Ledger {
	l := &Ledger{
		db:      db,
		loc:     opts.Location,
		now:     opts.Now,
		retries: opts.MaxRetries,
		backoff: opts.Backoff,
	}
	if l.loc == nil {
		l.loc = time.UTC
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.retries < 1 {
		l.retries = 3
	}
	if l.backoff == 0 {
		l.backoff = 20 * time.Millisecond
	}
	return l
}

// AppendParams describes one ledger entry. Amount is signed.
type AppendParams struct {
	OutletID      int
	Type          models.LedgerEntryType
	Amount        decimal.Decimal
	ReferenceType *string
	ReferenceID   *int
	Description   string
	CreatedBy     *int
}

// Append writes an entry inside the caller's transaction.
func (l *Ledger) Append(tx *gorm.DB, p AppendParams) (*models.CashLedgerEntry, error) {
	return l.append(tx, p, func(decimal.Decimal) decimal.Decimal { return p.Amount })
}

// Drain writes an entry of minus the current balance, bringing the drawer to zero.
func (l *Ledger) Drain(tx *gorm.DB, p AppendParams) (*models.CashLedgerEntry, error) {
	return l.append(tx, p, func(balance decimal.Decimal) decimal.Decimal { return balance.Neg() })
}

func (l *Ledger) append(tx *gorm.DB, p AppendParams, amountFor func(balance decimal.Decimal) decimal.Decimal) (*models.CashLedgerEntry, error) {
	if p.OutletID == 0 {
		return nil, apperr.New(apperr.CodeOutletRequired, "outlet id required")
	}
	if !p.Type.Valid() {
		return nil, apperr.New(apperr.CodeInvalidLedgerType, fmt.Sprintf("invalid ledger entry type %q", p.Type))
	}

	now := l.now()
	head, err := l.lockHead(tx, p.OutletID, now)
	if err != nil {
		return nil, err
	}

	amount := amountFor(head.Balance).Round(2)
	entry := models.CashLedgerEntry{
		OutletID:        p.OutletID,
		TransactionType: p.Type,
		Amount:          amount,
		BalanceBefore:   head.Balance,
		BalanceAfter:    head.Balance.Add(amount),
		ReferenceType:   p.ReferenceType,
		ReferenceID:     p.ReferenceID,
		Description:     p.Description,
		BusinessDate:    utils.BusinessDate(now.In(l.loc)),
		CreatedBy:       p.CreatedBy,
		CreatedAt:       now.UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	if err := tx.Model(&models.CashLedgerHead{}).
		Where("outlet_id = ?", p.OutletID).
		Updates(map[string]interface{}{
			"balance":       entry.BalanceAfter,
			"last_entry_id": entry.ID,
			"entry_count":   gorm.Expr("entry_count + 1"),
			"updated_at":    now.UTC(),
		}).Error; err != nil {
		return nil, fmt.Errorf("failed to advance ledger head: %w", err)
	}

	return &entry, nil
}

// lockHead creates the outlet's head row if missing and locks it.
func (l *Ledger) lockHead(tx *gorm.DB, outletID int, now time.Time) (*models.CashLedgerHead, error) {
	seed := models.CashLedgerHead{OutletID: outletID, Balance: decimal.Zero, UpdatedAt: now.UTC()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("failed to init ledger head: %w", err)
	}

	var head models.CashLedgerHead
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("outlet_id = ?", outletID).
		First(&head).Error; err != nil {
		return nil, fmt.Errorf("failed to lock ledger head: %w", err)
	}
	return &head, nil
}

// MovementParams describes a manual drawer movement. Amount is unsigned.
type MovementParams struct {
	OutletID    int
	Type        models.LedgerEntryType
	Amount      decimal.Decimal
	Description string
	ActorID     *int
}

// RecordMovement appends a cash_in, cash_out or expense entry in its own transaction.
func (l *Ledger) RecordMovement(ctx context.Context, p MovementParams) (*models.CashLedgerEntry, error) {
	var signed decimal.Decimal
	switch p.Type {
	case models.LedgerEntryCashIn:
		signed = p.Amount.Abs()
	case models.LedgerEntryCashOut, models.LedgerEntryExpense:
		signed = p.Amount.Abs().Neg()
	default:
		return nil, apperr.New(apperr.CodeInvalidLedgerType, "movement type must be cash_in, cash_out or expense")
	}
	if !p.Amount.IsPositive() {
		return nil, apperr.New(apperr.CodeInvalidAmount, "amount must be greater than zero")
	}

	var entry *models.CashLedgerEntry
	err := database.WithRetry(ctx, l.retries, l.backoff, func(int) error {
		return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			entry, err = l.Append(tx, AppendParams{
				OutletID:    p.OutletID,
				Type:        p.Type,
				Amount:      signed,
				Description: p.Description,
				CreatedBy:   p.ActorID,
			})
			if err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				OutletID:    &p.OutletID,
				ActorID:     p.ActorID,
				EntityType:  audit.EntityCashLedger,
				EntityID:    entry.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("%s %s", p.Type, entry.Amount.StringFixed(2)),
				After:       entry,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Balance returns the outlet's current drawer balance.
func (l *Ledger) Balance(ctx context.Context, outletID int) (decimal.Decimal, error) {
	return l.BalanceTx(l.db.WithContext(ctx), outletID)
}

// BalanceTx reads the balance through db, which may be a transaction.
func (l *Ledger) BalanceTx(db *gorm.DB, outletID int) (decimal.Decimal, error) {
	var head models.CashLedgerHead
	err := db.Where("outlet_id = ?", outletID).First(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read ledger balance: %w", err)
	}
	return head.Balance, nil
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, outletID, limit int) ([]models.CashLedgerEntry, error) {
	return l.RecentTx(l.db.WithContext(ctx), outletID, limit)
}

// RecentTx is Recent through db, which may be a transaction.
func (l *Ledger) RecentTx(db *gorm.DB, outletID, limit int) ([]models.CashLedgerEntry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	var entries []models.CashLedgerEntry
	if err := db.Where("outlet_id = ?", outletID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load ledger entries: %w", err)
	}
	return entries, nil
}

// Totals is the per-type sum of signed amounts for one business date.
type Totals map[models.LedgerEntryType]decimal.Decimal

// Get returns the total for t, zero when absent.
func (t Totals) Get(typ models.LedgerEntryType) decimal.Decimal {
	if v, ok := t[typ]; ok {
		return v
	}
	return decimal.Zero
}

// ExpectedCash applies opening + sale + cash_in - |cash_out| - |refund| - |expense|.
func (t Totals) ExpectedCash(openingCash decimal.Decimal) decimal.Decimal {
	return openingCash.
		Add(t.Get(models.LedgerEntrySale)).
		Add(t.Get(models.LedgerEntryCashIn)).
		Sub(t.Get(models.LedgerEntryCashOut).Abs()).
		Sub(t.Get(models.LedgerEntryRefund).Abs()).
		Sub(t.Get(models.LedgerEntryExpense).Abs()).
		Round(2)
}

// Totals sums entries for an outlet on businessDate (YYYY-MM-DD).
func (l *Ledger) Totals(ctx context.Context, outletID int, businessDate string) (Totals, error) {
	return l.TotalsTx(l.db.WithContext(ctx), outletID, businessDate)
}

// TotalsTx is Totals through db, which may be a transaction.
func (l *Ledger) TotalsTx(db *gorm.DB, outletID int, businessDate string) (Totals, error) {
	return l.TotalsAfterTx(db, outletID, businessDate, 0)
}

// TotalsAfterTx sums only entries with an id greater than afterID.
func (l *Ledger) TotalsAfterTx(db *gorm.DB, outletID int, businessDate string, afterID int) (Totals, error) {
	var rows []struct {
		TransactionType models.LedgerEntryType
		Total           decimal.Decimal
	}
	if err := db.Model(&models.CashLedgerEntry{}).
		Select("transaction_type, SUM(amount) AS total").
		Where("outlet_id = ? AND business_date = ? AND id > ?", outletID, businessDate, afterID).
		Group("transaction_type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to total ledger entries: %w", err)
	}

	totals := make(Totals, len(rows))
	for _, r := range rows {
		totals[r.TransactionType] = r.Total.Round(2)
	}
	return totals, nil
}

// Today returns the outlet-local business date for the ledger clock.
func (l *Ledger) Today() string {
	return utils.BusinessDate(l.now().In(l.loc))
}
