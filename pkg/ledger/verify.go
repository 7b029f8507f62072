package ledger

import (
	"context"
	"fmt"

	"pos_settlement/pkg/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const verifyBatchSize = 500

// VerifyReport is the outcome of walking an outlet's ledger chain.
type VerifyReport struct {
	OutletID    int             `json:"outletId"`
	Entries     int             `json:"entries"`
	Balance     decimal.Decimal `json:"balance"`
	Valid       bool            `json:"valid"`
	BrokenEntry *int            `json:"brokenEntry,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// Verify walks the chain in id order and reports the first break.
func (l *Ledger) Verify(ctx context.Context, outletID int) (*VerifyReport, error) {
	report := &VerifyReport{OutletID: outletID, Balance: decimal.Zero, Valid: true}

	var prev *models.CashLedgerEntry
	var batch []models.CashLedgerEntry
	result := l.db.WithContext(ctx).
		Where("outlet_id = ?", outletID).
		FindInBatches(&batch, verifyBatchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				e := batch[i]
				report.Entries++
				if !report.Valid {
					continue
				}
				if reason := checkLink(prev, &e); reason != "" {
					report.Valid = false
					report.BrokenEntry = &e.ID
					report.Reason = reason
				}
				prev = &e
				report.Balance = e.BalanceAfter
			}
			return nil
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to walk ledger: %w", result.Error)
	}

	if report.Valid {
		head, err := l.BalanceTx(l.db.WithContext(ctx), outletID)
		if err != nil {
			return nil, err
		}
		if !head.Equal(report.Balance) {
			report.Valid = false
			report.Reason = fmt.Sprintf("head balance %s does not match last entry %s",
				head.StringFixed(2), report.Balance.StringFixed(2))
		}
	}

	return report, nil
}

func checkLink(prev, e *models.CashLedgerEntry) string {
	if prev == nil {
		if !e.BalanceBefore.IsZero() {
			return fmt.Sprintf("first entry starts at %s, want 0.00", e.BalanceBefore.StringFixed(2))
		}
	} else if !e.BalanceBefore.Equal(prev.BalanceAfter) {
		return fmt.Sprintf("balance before %s does not continue %s",
			e.BalanceBefore.StringFixed(2), prev.BalanceAfter.StringFixed(2))
	}
	if !e.BalanceAfter.Equal(e.BalanceBefore.Add(e.Amount)) {
		return fmt.Sprintf("balance after %s != %s + %s",
			e.BalanceAfter.StringFixed(2), e.BalanceBefore.StringFixed(2), e.Amount.StringFixed(2))
	}
	return ""
}
