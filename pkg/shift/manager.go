// Package shift runs the day-session lifecycle and cash reconciliation.
package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos_settlement/pkg/apperr"
	"pos_settlement/pkg/audit"
	"pos_settlement/pkg/database"
	"pos_settlement/pkg/ledger"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const referenceDaySession = "day_session"

// Options configures a Manager.
type Options struct {
	Location   *time.Location
	Now        func() time.Time
	MaxRetries int
	Backoff    time.Duration
}

// Manager opens, closes and reports on day sessions.
type Manager struct {
	db     *gorm.DB
	ledger *ledger.Ledger

	loc     *time.Location
	now     func() time.Time
	retries int
	backoff time.Duration
}

// NewManager returns a Manager reconciling against l.
func NewManager(db *gorm.DB, l *ledger.Ledger, opts Options) *Manager {
	m := &Manager{
		db:      db,
		ledger:  l,
		loc:     opts.Location,
		now:     opts.Now,
		retries: opts.MaxRetries,
		backoff: opts.Backoff,
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.retries < 1 {
		m.retries = 3
	}
	if m.backoff == 0 {
		m.backoff = 25 * time.Millisecond
	}
	return m
}

// OpenRequest starts a shift. FloorID 0 covers the whole outlet.
type OpenRequest struct {
	OutletID    int
	FloorID     int
	OpeningCash decimal.Decimal
	UserID      int
}

// Open starts today's session, reopening it if it was closed earlier today,
// and books the opening float.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*models.DaySession, error) {
	if req.OutletID == 0 {
		return nil, apperr.New(apperr.CodeOutletRequired, "outlet id required")
	}
	opening := req.OpeningCash.Round(2)
	if opening.IsNegative() {
		return nil, apperr.New(apperr.CodeInvalidAmount, "opening cash cannot be negative")
	}

	var session models.DaySession
	err := database.WithRetry(ctx, m.retries, m.backoff, func(int) error {
		return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// The drawer ledger is per outlet, so only one floor may hold it at a time.
			var open []models.DaySession
			if err := tx.Select("id", "floor_id").
				Where("outlet_id = ? AND status = ?", req.OutletID, models.DaySessionOpen).
				Limit(1).
				Find(&open).Error; err != nil {
				return fmt.Errorf("failed to check open session: %w", err)
			}
			if len(open) > 0 {
				return apperr.New(apperr.CodeSessionAlreadyOpen,
					fmt.Sprintf("session already open for this outlet on floor %d", open[0].FloorID))
			}

			now := m.now()
			today := utils.BusinessDate(now.In(m.loc))

			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("outlet_id = ? AND floor_id = ? AND session_date = ?", req.OutletID, req.FloorID, today).
				First(&session).Error
			switch {
			case err == nil:
				if err := m.reopen(tx, &session, opening, req.UserID, now); err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				session = models.DaySession{
					OutletID:    req.OutletID,
					FloorID:     req.FloorID,
					SessionDate: today,
					Status:      models.DaySessionOpen,
					OpeningCash: opening,
					TotalSales:  decimal.Zero,
					CashSales:   decimal.Zero,
					CardSales:   decimal.Zero,
					UPISales:    decimal.Zero,
					OtherSales:  decimal.Zero,
					OpenedBy:    req.UserID,
					OpenedAt:    now.UTC(),
				}
				if err := tx.Create(&session).Error; err != nil {
					return fmt.Errorf("failed to create session: %w", err)
				}
			default:
				return fmt.Errorf("failed to load session: %w", err)
			}

			refType := referenceDaySession
			if _, err := m.ledger.Append(tx, ledger.AppendParams{
				OutletID:      req.OutletID,
				Type:          models.LedgerEntryOpening,
				Amount:        opening,
				ReferenceType: &refType,
				ReferenceID:   &session.ID,
				Description:   fmt.Sprintf("Opening float for %s", today),
				CreatedBy:     &req.UserID,
			}); err != nil {
				return err
			}

			return audit.WriteLog(tx, audit.LogOptions{
				OutletID:    &req.OutletID,
				ActorID:     &req.UserID,
				EntityType:  audit.EntityDaySession,
				EntityID:    session.ID,
				Action:      models.AuditActionOpen,
				Description: fmt.Sprintf("Shift opened with %s", opening.StringFixed(2)),
				After:       session,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// reopen resets a closed session of the same date back to open.
func (m *Manager) reopen(tx *gorm.DB, session *models.DaySession, opening decimal.Decimal, userID int, now time.Time) error {
	if err := tx.Model(&models.DaySession{}).Where("id = ?", session.ID).Updates(map[string]interface{}{
		"status":         models.DaySessionOpen,
		"opening_cash":   opening,
		"closing_cash":   nil,
		"expected_cash":  nil,
		"cash_variance":  nil,
		"total_sales":    decimal.Zero,
		"total_orders":   0,
		"cash_sales":     decimal.Zero,
		"card_sales":     decimal.Zero,
		"upi_sales":      decimal.Zero,
		"other_sales":    decimal.Zero,
		"opened_by":      userID,
		"opened_at":      now.UTC(),
		"closed_by":      nil,
		"closed_at":      nil,
		"variance_notes": nil,
	}).Error; err != nil {
		return fmt.Errorf("failed to reopen session: %w", err)
	}
	return tx.First(session, "id = ?", session.ID).Error
}

// openingEntryID is the latest opening entry booked for the session. A
// same-day reopen books a new one, so earlier drained entries fall before it.
func openingEntryID(tx *gorm.DB, sessionID int) (int, error) {
	var id int
	if err := tx.Model(&models.CashLedgerEntry{}).
		Select("COALESCE(MAX(id), 0)").
		Where("transaction_type = ? AND reference_type = ? AND reference_id = ?",
			models.LedgerEntryOpening, referenceDaySession, sessionID).
		Scan(&id).Error; err != nil {
		return 0, fmt.Errorf("failed to find opening entry: %w", err)
	}
	return id, nil
}

// CloseRequest ends the open shift with the counted drawer cash.
type CloseRequest struct {
	OutletID   int
	FloorID    int
	ActualCash decimal.Decimal
	UserID     int
	Notes      string
}

// CloseResult is the reconciled session and the entry that emptied the drawer.
type CloseResult struct {
	Session      models.DaySession      `json:"session"`
	ClosingEntry models.CashLedgerEntry `json:"closingEntry"`
}

// Close reconciles the drawer against the ledger, stores the day's sales
// totals and books a closing entry that returns the balance to zero.
func (m *Manager) Close(ctx context.Context, req CloseRequest) (*CloseResult, error) {
	actual := req.ActualCash.Round(2)
	if actual.IsNegative() {
		return nil, apperr.New(apperr.CodeInvalidAmount, "actual cash cannot be negative")
	}

	var result *CloseResult
	err := database.WithRetry(ctx, m.retries, m.backoff, func(int) error {
		return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var session models.DaySession
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("outlet_id = ? AND floor_id = ? AND status = ?", req.OutletID, req.FloorID, models.DaySessionOpen).
				First(&session).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.CodeNoOpenSession, "no open session")
			}
			if err != nil {
				return fmt.Errorf("failed to lock session: %w", err)
			}

			openingID, err := openingEntryID(tx, session.ID)
			if err != nil {
				return err
			}
			totals, err := m.ledger.TotalsAfterTx(tx, req.OutletID, session.SessionDate, openingID)
			if err != nil {
				return err
			}
			expected := totals.ExpectedCash(session.OpeningCash)
			variance := actual.Sub(expected)

			sales, err := aggregateSales(tx, req.OutletID, session.SessionDate, session.OpenedAt)
			if err != nil {
				return err
			}

			now := m.now().UTC()
			updates := map[string]interface{}{
				"status":        models.DaySessionClosed,
				"closing_cash":  actual,
				"expected_cash": expected,
				"cash_variance": variance,
				"total_sales":   sales.Total,
				"total_orders":  sales.Orders,
				"cash_sales":    sales.Cash,
				"card_sales":    sales.Card,
				"upi_sales":     sales.UPI,
				"other_sales":   sales.Other,
				"closed_by":     req.UserID,
				"closed_at":     now,
			}
			if req.Notes != "" {
				updates["variance_notes"] = req.Notes
			}
			if err := tx.Model(&models.DaySession{}).Where("id = ?", session.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to close session: %w", err)
			}

			refType := referenceDaySession
			entry, err := m.ledger.Drain(tx, ledger.AppendParams{
				OutletID:      req.OutletID,
				Type:          models.LedgerEntryClosing,
				ReferenceType: &refType,
				ReferenceID:   &session.ID,
				Description: fmt.Sprintf("Shift close: counted %s, expected %s, variance %s",
					actual.StringFixed(2), expected.StringFixed(2), variance.StringFixed(2)),
				CreatedBy: &req.UserID,
			})
			if err != nil {
				return err
			}

			res := &CloseResult{ClosingEntry: *entry}
			if err := tx.First(&res.Session, "id = ?", session.ID).Error; err != nil {
				return fmt.Errorf("failed to reload session: %w", err)
			}

			if err := audit.WriteLog(tx, audit.LogOptions{
				OutletID:    &req.OutletID,
				ActorID:     &req.UserID,
				EntityType:  audit.EntityDaySession,
				EntityID:    session.ID,
				Action:      models.AuditActionClose,
				Description: entry.Description,
				After:       res.Session,
			}); err != nil {
				return err
			}

			result = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StatusView is the read-only shift dashboard.
type StatusView struct {
	Session *models.DaySession       `json:"session"`
	Balance decimal.Decimal          `json:"balance"`
	Recent  []models.CashLedgerEntry `json:"recentEntries"`
}

// Status returns the open session (nil when closed), the drawer balance and
// a bounded page of recent ledger entries.
func (m *Manager) Status(ctx context.Context, outletID, floorID, limit int) (*StatusView, error) {
	db := m.db.WithContext(ctx)
	view := &StatusView{}

	var session models.DaySession
	err := db.Where("outlet_id = ? AND floor_id = ? AND status = ?", outletID, floorID, models.DaySessionOpen).
		First(&session).Error
	switch {
	case err == nil:
		view.Session = &session
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if view.Balance, err = m.ledger.BalanceTx(db, outletID); err != nil {
		return nil, err
	}
	if view.Recent, err = m.ledger.RecentTx(db, outletID, limit); err != nil {
		return nil, err
	}
	return view, nil
}
