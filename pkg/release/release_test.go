package release

import (
	"testing"
	"time"

	"pos_settlement/pkg/models"
	"pos_settlement/pkg/testutil"

	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, time.March, 7, 13, 0, 0, 0, time.UTC)

func release(t *testing.T, db *gorm.DB, req Request) *Result {
	t.Helper()
	c := NewCoordinator(func() time.Time { return fixedNow })
	var result *Result
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = c.ReleaseOnFullSettlement(tx, req)
		return err
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	return result
}

func TestReleaseUnmergesAndFreesTables(t *testing.T) {
	db := testutil.OpenDB(t)
	outlet := testutil.SeedOutlet(t, db, "Main")
	tableA := testutil.SeedTable(t, db, outlet.ID, "A", 4, models.TableStatusOccupied)
	tableB := testutil.SeedTable(t, db, outlet.ID, "B", 2, models.TableStatusOccupied)
	testutil.SeedMerge(t, db, tableA, tableB, fixedNow.Add(-time.Hour))
	session := testutil.SeedTableSession(t, db, tableA, fixedNow.Add(-time.Hour))
	order := testutil.SeedOrder(t, db, testutil.OrderSeed{OutletID: outlet.ID, Total: "500", TableID: &tableA.ID, TableSessionID: &session.ID})

	result := release(t, db, Request{OrderID: order.ID, TableID: &tableA.ID, SessionID: &session.ID, ActorID: testutil.IntPtr(9)})

	var a, b models.DiningTable
	db.First(&a, tableA.ID)
	db.First(&b, tableB.ID)
	if a.Status != models.TableStatusAvailable || b.Status != models.TableStatusAvailable {
		t.Fatalf("statuses = %s, %s", a.Status, b.Status)
	}
	if a.Capacity != 2 {
		t.Fatalf("primary capacity = %d, want 2", a.Capacity)
	}

	var merge models.TableMerge
	db.First(&merge, "primary_table_id = ?", tableA.ID)
	if merge.UnmergedAt == nil {
		t.Fatal("merge still active")
	}

	var s models.TableSession
	db.First(&s, session.ID)
	if s.Status != models.TableSessionCompleted || s.EndedAt == nil {
		t.Fatalf("session = %+v", s)
	}
	if s.ClosedBy == nil || *s.ClosedBy != 9 {
		t.Fatalf("closed by = %v", s.ClosedBy)
	}

	if !result.SessionClosed || len(result.UnmergedTableIDs) != 1 || len(result.ReleasedTableIDs) != 2 {
		t.Fatalf("result = %+v", result)
	}
}

func TestReleaseCapacityFloorsAtOne(t *testing.T) {
	db := testutil.OpenDB(t)
	outlet := testutil.SeedOutlet(t, db, "Main")
	tableA := testutil.SeedTable(t, db, outlet.ID, "A", 2, models.TableStatusOccupied)
	tableB := testutil.SeedTable(t, db, outlet.ID, "B", 4, models.TableStatusOccupied)
	tableC := testutil.SeedTable(t, db, outlet.ID, "C", 4, models.TableStatusOccupied)
	testutil.SeedMerge(t, db, tableA, tableB, fixedNow)
	testutil.SeedMerge(t, db, tableA, tableC, fixedNow)
	order := testutil.SeedOrder(t, db, testutil.OrderSeed{OutletID: outlet.ID, Total: "100", TableID: &tableA.ID})

	release(t, db, Request{OrderID: order.ID, TableID: &tableA.ID})

	var a models.DiningTable
	db.First(&a, tableA.ID)
	if a.Capacity != 1 {
		t.Fatalf("capacity = %d, want 1", a.Capacity)
	}
}

func TestReleaseIgnoresFinishedMerges(t *testing.T) {
	db := testutil.OpenDB(t)
	outlet := testutil.SeedOutlet(t, db, "Main")
	tableA := testutil.SeedTable(t, db, outlet.ID, "A", 6, models.TableStatusOccupied)
	tableB := testutil.SeedTable(t, db, outlet.ID, "B", 2, models.TableStatusReserved)
	merge := testutil.SeedMerge(t, db, tableA, tableB, fixedNow.Add(-2*time.Hour))
	unmerged := fixedNow.Add(-time.Hour)
	db.Model(&merge).Update("unmerged_at", unmerged)
	order := testutil.SeedOrder(t, db, testutil.OrderSeed{OutletID: outlet.ID, Total: "100", TableID: &tableA.ID})

	result := release(t, db, Request{OrderID: order.ID, TableID: &tableA.ID})

	var a, b models.DiningTable
	db.First(&a, tableA.ID)
	db.First(&b, tableB.ID)
	if a.Capacity != 6 {
		t.Fatalf("capacity = %d, want 6", a.Capacity)
	}
	if b.Status != models.TableStatusReserved {
		t.Fatalf("finished merge table touched: %s", b.Status)
	}
	if len(result.UnmergedTableIDs) != 0 {
		t.Fatalf("unmerged = %v", result.UnmergedTableIDs)
	}
}

func TestMarkServedLeavesTerminalRowsAlone(t *testing.T) {
	db := testutil.OpenDB(t)
	outlet := testutil.SeedOutlet(t, db, "Main")
	order := testutil.SeedOrder(t, db, testutil.OrderSeed{OutletID: outlet.ID, Total: "300"})
	other := testutil.SeedOrder(t, db, testutil.OrderSeed{OutletID: outlet.ID, Total: "50"})

	pending := testutil.SeedTicket(t, db, order, models.KitchenStatusPreparing,
		models.KitchenStatusPending, models.KitchenStatusReady, models.KitchenStatusCancelled)
	cancelled := testutil.SeedTicket(t, db, order, models.KitchenStatusCancelled)
	foreign := testutil.SeedTicket(t, db, other, models.KitchenStatusPending, models.KitchenStatusPending)

	testutil.SeedOrderItem(t, db, order.ID, "Dosa", "120", models.KitchenStatusPending)
	testutil.SeedOrderItem(t, db, order.ID, "Tea", "30", models.KitchenStatusServed)
	testutil.SeedOrderItem(t, db, order.ID, "Vada", "60", models.KitchenStatusCancelled)

	var counts ServedCounts
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		counts, err = MarkServed(tx, order.ID, fixedNow)
		return err
	})
	if err != nil {
		t.Fatalf("mark served: %v", err)
	}

	if counts.Tickets != 1 || counts.TicketItems != 2 || counts.OrderItems != 1 {
		t.Fatalf("counts = %+v", counts)
	}

	var ticket models.KitchenTicket
	db.First(&ticket, pending.ID)
	if ticket.Status != models.KitchenStatusServed || ticket.ServedAt == nil {
		t.Fatalf("ticket = %+v", ticket)
	}
	db.First(&ticket, cancelled.ID)
	if ticket.Status != models.KitchenStatusCancelled {
		t.Fatalf("cancelled ticket rewritten to %s", ticket.Status)
	}
	db.First(&ticket, foreign.ID)
	if ticket.Status != models.KitchenStatusPending {
		t.Fatalf("other order's ticket rewritten to %s", ticket.Status)
	}

	var cancelledItems int64
	db.Model(&models.KitchenTicketItem{}).Where("ticket_id = ? AND status = ?", pending.ID, models.KitchenStatusCancelled).Count(&cancelledItems)
	if cancelledItems != 1 {
		t.Fatalf("cancelled items = %d", cancelledItems)
	}
	var foreignServed int64
	db.Model(&models.KitchenTicketItem{}).Where("ticket_id = ? AND status = ?", foreign.ID, models.KitchenStatusServed).Count(&foreignServed)
	if foreignServed != 0 {
		t.Fatal("other order's items were served")
	}
}

func TestReleaseWithoutTableOnlyServesKitchen(t *testing.T) {
	db := testutil.OpenDB(t)
	outlet := testutil.SeedOutlet(t, db, "Main")
	order := testutil.SeedOrder(t, db, testutil.OrderSeed{OutletID: outlet.ID, Total: "80"})
	testutil.SeedTicket(t, db, order, models.KitchenStatusReady, models.KitchenStatusReady)

	result := release(t, db, Request{OrderID: order.ID})
	if result.TablesChanged() || result.SessionClosed {
		t.Fatalf("result = %+v", result)
	}
	if result.Served.Total() != 2 {
		t.Fatalf("served = %+v", result.Served)
	}
}
