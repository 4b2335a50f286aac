//go:build integration

package storage

import (
	"context"
	"testing"
)

// TestPostgresOrderSummary runs the full reconciliation path against a real
// PostgreSQL instance, exercising the $n placeholder dialect end to end.
func TestPostgresOrderSummary(t *testing.T) {
	WithPostgresStore(t, func(t *testing.T, store *PostgresStore) {
		ctx := context.Background()

		t1 := mustCreateTemplate(t, store, "T1")
		p1 := mustCreateProduct(t, store, t1.ID, "P1")
		p2 := mustCreateProduct(t, store, t1.ID, "P2")

		mustCreateOrderLine(t, store, p1.ID, 2)
		mustCreateOrderLine(t, store, p1.ID, 3)
		mustCreateOrderLine(t, store, p2.ID, 3)
		mustCreateManufacturing(t, store, p1.ID, 4, StateDone)

		delivery := mustCreateDelivery(t, store, "OUT/001", DeliveryTypeOutgoing)
		mustCreateMove(t, store, p1.ID, &delivery.ID, 2, StateDone)

		rows, err := store.OrderSummary(ctx, SummaryFilter{})
		if err != nil {
			t.Fatalf("OrderSummary: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if rows[0].OrderedQty != 5 || rows[0].ManufacturedQty != 4 || rows[0].DeliveredQty != 2 {
			t.Errorf("P1 row = %+v, want ordered 5 manufactured 4 delivered 2", *rows[0])
		}
		if rows[1].OrderedQty != 3 || rows[1].DeliveredQty != 0 {
			t.Errorf("P2 row = %+v, want ordered 3 delivered 0", *rows[1])
		}

		// Scoped query with the $n placeholders in both CTE filters.
		rows, err = store.OrderSummary(ctx, SummaryFilter{
			TemplateIDs: []int64{t1.ID},
			DeliveryIDs: []int64{delivery.ID},
		})
		if err != nil {
			t.Fatalf("OrderSummary (scoped): %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("scoped query returned %d rows, want 2", len(rows))
		}
	})
}

func TestPostgresCompleteMovesAndParameters(t *testing.T) {
	WithPostgresStore(t, func(t *testing.T, store *PostgresStore) {
		ctx := context.Background()

		t1 := mustCreateTemplate(t, store, "T1")
		p := mustCreateProduct(t, store, t1.ID, "P1")
		delivery := mustCreateDelivery(t, store, "OUT/001", DeliveryTypeOutgoing)
		m := mustCreateMove(t, store, p.ID, &delivery.ID, 2, StateDraft)

		moves, err := store.CompleteMoves(ctx, []int64{m.ID})
		if err != nil {
			t.Fatalf("CompleteMoves: %v", err)
		}
		if len(moves) != 1 || moves[0].State != StateDone {
			t.Fatalf("expected one completed move, got %+v", moves)
		}

		if err := store.SetParameter(ctx, "order_summary.jwt_secret", "secret-a"); err != nil {
			t.Fatalf("SetParameter: %v", err)
		}
		if err := store.SetParameter(ctx, "order_summary.jwt_secret", "secret-b"); err != nil {
			t.Fatalf("SetParameter (upsert): %v", err)
		}
		value, err := store.GetParameter(ctx, "order_summary.jwt_secret")
		if err != nil {
			t.Fatalf("GetParameter: %v", err)
		}
		if value != "secret-b" {
			t.Errorf("parameter = %q, want secret-b", value)
		}
	})
}
