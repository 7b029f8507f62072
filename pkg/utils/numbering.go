package utils

import (
	"fmt"
	"time"

	"pos_settlement/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Document number prefixes
const (
	PrefixPayment = "PAY"
	PrefixRefund  = "REF"
)

// BusinessDate formats the outlet-local calendar day.
func BusinessDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatDocumentNumber renders prefix + yyMMdd + 4-digit sequence.
func FormatDocumentNumber(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s%s%04d", prefix, day.Format("060102"), seq)
}

// NextDocumentNumber allocates the next daily number for an outlet inside tx.
// day must already be in the outlet's timezone.
func NextDocumentNumber(tx *gorm.DB, outletID int, prefix string, day time.Time) (string, error) {
	seqDate := BusinessDate(day)

	// Make sure the counter row exists so concurrent callers lock the same row
	seed := models.DocumentSequence{OutletID: outletID, Prefix: prefix, SeqDate: seqDate}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return "", fmt.Errorf("failed to init %s sequence: %w", prefix, err)
	}

	var seq models.DocumentSequence
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("outlet_id = ? AND prefix = ? AND seq_date = ?", outletID, prefix, seqDate).
		First(&seq).Error; err != nil {
		return "", fmt.Errorf("failed to lock %s sequence: %w", prefix, err)
	}

	next := seq.LastValue + 1
	if err := tx.Model(&models.DocumentSequence{}).
		Where("id = ?", seq.ID).
		Update("last_value", next).Error; err != nil {
		return "", fmt.Errorf("failed to advance %s sequence: %w", prefix, err)
	}

	return FormatDocumentNumber(prefix, day, next), nil
}
