package shift

import (
	"fmt"
	"time"

	"pos_settlement/pkg/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// salesSummary is the day's completed takings split by mode.
type salesSummary struct {
	Total  decimal.Decimal
	Orders int
	Cash   decimal.Decimal
	Card   decimal.Decimal
	UPI    decimal.Decimal
	Other  decimal.Decimal
}

func (s *salesSummary) add(mode models.PaymentMode, amount decimal.Decimal) {
	switch mode {
	case models.PaymentModeCash:
		s.Cash = s.Cash.Add(amount)
	case models.PaymentModeCard:
		s.Card = s.Card.Add(amount)
	case models.PaymentModeUPI:
		s.UPI = s.UPI.Add(amount)
	default:
		s.Other = s.Other.Add(amount)
	}
}

// aggregateSales totals completed payments booked on businessDate since the
// session was (re)opened. Split payments are attributed to modes through their legs.
func aggregateSales(tx *gorm.DB, outletID int, businessDate string, openedAt time.Time) (*salesSummary, error) {
	var payments []models.Payment
	if err := tx.Preload("Splits").
		Where("outlet_id = ? AND business_date = ? AND status = ? AND created_at >= ?",
			outletID, businessDate, models.PaymentStatusCompleted, openedAt.UTC()).
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to load day payments: %w", err)
	}

	summary := &salesSummary{
		Total: decimal.Zero,
		Cash:  decimal.Zero,
		Card:  decimal.Zero,
		UPI:   decimal.Zero,
		Other: decimal.Zero,
	}
	orders := make(map[int]struct{})
	for _, p := range payments {
		summary.Total = summary.Total.Add(p.TotalAmount)
		orders[p.OrderID] = struct{}{}

		if p.Mode != models.PaymentModeSplit {
			summary.add(p.Mode, p.TotalAmount)
			continue
		}
		for _, s := range p.Splits {
			summary.add(s.Mode, s.Amount)
		}
	}
	summary.Orders = len(orders)
	return summary, nil
}
