// Package release frees tables and closes out kitchen work once an order is
// fully settled. It only runs inside the settlement transaction.
package release

import (
	"fmt"
	"time"

	"pos_settlement/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Coordinator releases the seating and kitchen state tied to a settled order.
type Coordinator struct {
	now func() time.Time
}

// NewCoordinator returns a Coordinator using now as its clock.
func NewCoordinator(now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{now: now}
}

// Request identifies what to release. TableID and SessionID are optional.
type Request struct {
	OrderID   int
	TableID   *int
	SessionID *int
	ActorID   *int
}

// Result summarises what the release touched, for post-commit events.
type Result struct {
	ReleasedTableIDs []int        `json:"releasedTableIds"`
	UnmergedTableIDs []int        `json:"unmergedTableIds"`
	SessionClosed    bool         `json:"sessionClosed"`
	Served           ServedCounts `json:"served"`
}

// TablesChanged reports whether any table row was released.
func (r *Result) TablesChanged() bool {
	return len(r.ReleasedTableIDs) > 0
}

// ServedCounts is how many rows MarkServed moved to served.
type ServedCounts struct {
	Tickets     int64 `json:"tickets"`
	TicketItems int64 `json:"ticketItems"`
	OrderItems  int64 `json:"orderItems"`
}

// Total is the number of rows transitioned.
func (s ServedCounts) Total() int64 {
	return s.Tickets + s.TicketItems + s.OrderItems
}

// ReleaseOnFullSettlement unmerges and frees the order's table, completes its
// seating session and marks outstanding kitchen work served. Any error must
// abort the caller's transaction.
func (c *Coordinator) ReleaseOnFullSettlement(tx *gorm.DB, req Request) (*Result, error) {
	now := c.now().UTC()
	result := &Result{}

	if req.TableID != nil {
		if err := c.releaseTable(tx, *req.TableID, now, result); err != nil {
			return nil, err
		}
	}

	if req.SessionID != nil {
		res := tx.Model(&models.TableSession{}).
			Where("id = ? AND status = ?", *req.SessionID, models.TableSessionActive).
			Updates(map[string]interface{}{
				"status":    models.TableSessionCompleted,
				"ended_at":  now,
				"closed_by": req.ActorID,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to complete table session: %w", res.Error)
		}
		result.SessionClosed = res.RowsAffected > 0
	}

	served, err := MarkServed(tx, req.OrderID, now)
	if err != nil {
		return nil, err
	}
	result.Served = served

	return result, nil
}

func (c *Coordinator) releaseTable(tx *gorm.DB, tableID int, now time.Time, result *Result) error {
	var primary models.DiningTable
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&primary, "id = ?", tableID).Error; err != nil {
		return fmt.Errorf("failed to lock table %d: %w", tableID, err)
	}

	var merges []models.TableMerge
	if err := tx.Preload("MergedTable").
		Where("primary_table_id = ? AND unmerged_at IS NULL", tableID).
		Order("id ASC").
		Find(&merges).Error; err != nil {
		return fmt.Errorf("failed to load table merges: %w", err)
	}

	capacity := primary.Capacity
	for _, merge := range merges {
		if err := tx.Model(&models.TableMerge{}).
			Where("id = ?", merge.ID).
			Update("unmerged_at", now).Error; err != nil {
			return fmt.Errorf("failed to unmerge table %d: %w", merge.MergedTableID, err)
		}
		if err := tx.Model(&models.DiningTable{}).
			Where("id = ?", merge.MergedTableID).
			Update("status", models.TableStatusAvailable).Error; err != nil {
			return fmt.Errorf("failed to free merged table %d: %w", merge.MergedTableID, err)
		}

		capacity -= merge.MergedTable.Capacity
		if capacity < 1 {
			capacity = 1
		}
		result.UnmergedTableIDs = append(result.UnmergedTableIDs, merge.MergedTableID)
		result.ReleasedTableIDs = append(result.ReleasedTableIDs, merge.MergedTableID)
	}

	if err := tx.Model(&models.DiningTable{}).
		Where("id = ?", tableID).
		Updates(map[string]interface{}{
			"status":   models.TableStatusAvailable,
			"capacity": capacity,
		}).Error; err != nil {
		return fmt.Errorf("failed to free table %d: %w", tableID, err)
	}
	result.ReleasedTableIDs = append(result.ReleasedTableIDs, tableID)

	return nil
}

// MarkServed moves every non-terminal kitchen ticket, ticket item and order
// item of the order to served. Full payment closes the kitchen workflow
// regardless of where it last stood.
func MarkServed(tx *gorm.DB, orderID int, at time.Time) (ServedCounts, error) {
	var counts ServedCounts
	terminal := models.TerminalKitchenStatuses

	ticketIDs := tx.Model(&models.KitchenTicket{}).Select("id").Where("order_id = ?", orderID)
	res := tx.Model(&models.KitchenTicketItem{}).
		Where("ticket_id IN (?) AND status NOT IN ?", ticketIDs, terminal).
		Update("status", models.KitchenStatusServed)
	if res.Error != nil {
		return counts, fmt.Errorf("failed to serve ticket items: %w", res.Error)
	}
	counts.TicketItems = res.RowsAffected

	res = tx.Model(&models.KitchenTicket{}).
		Where("order_id = ? AND status NOT IN ?", orderID, terminal).
		Updates(map[string]interface{}{
			"status":    models.KitchenStatusServed,
			"served_at": at,
		})
	if res.Error != nil {
		return counts, fmt.Errorf("failed to serve kitchen tickets: %w", res.Error)
	}
	counts.Tickets = res.RowsAffected

	res = tx.Model(&models.OrderItem{}).
		Where("order_id = ? AND status NOT IN ?", orderID, terminal).
		Update("status", models.KitchenStatusServed)
	if res.Error != nil {
		return counts, fmt.Errorf("failed to serve order items: %w", res.Error)
	}
	counts.OrderItems = res.RowsAffected

	return counts, nil
}
