package storage

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreateTemplate(t *testing.T, store Store, name string) *ProductTemplate {
	t.Helper()
	tmpl := &ProductTemplate{Name: name}
	if err := store.CreateTemplate(context.Background(), tmpl); err != nil {
		t.Fatalf("CreateTemplate(%s): %v", name, err)
	}
	return tmpl
}

func mustCreateProduct(t *testing.T, store Store, templateID int64, code string) *Product {
	t.Helper()
	p := &Product{TemplateID: templateID, DefaultCode: code}
	if err := store.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("CreateProduct(%s): %v", code, err)
	}
	return p
}

func mustCreateDelivery(t *testing.T, store Store, name, typeCode string) *Delivery {
	t.Helper()
	d := &Delivery{Name: name, TypeCode: typeCode}
	if err := store.CreateDelivery(context.Background(), d); err != nil {
		t.Fatalf("CreateDelivery(%s): %v", name, err)
	}
	return d
}

func mustCreateMove(t *testing.T, store Store, productID int64, deliveryID *int64, qty float64, state string) *StockMove {
	t.Helper()
	m := &StockMove{ProductID: productID, DeliveryID: deliveryID, Qty: qty, State: state}
	if err := store.CreateMove(context.Background(), m); err != nil {
		t.Fatalf("CreateMove: %v", err)
	}
	return m
}

func mustCreateOrderLine(t *testing.T, store Store, productID int64, qty float64) {
	t.Helper()
	if err := store.CreateOrderLine(context.Background(), &SaleOrderLine{ProductID: productID, Qty: qty}); err != nil {
		t.Fatalf("CreateOrderLine: %v", err)
	}
}

func mustCreateManufacturing(t *testing.T, store Store, productID int64, qty float64, state string) {
	t.Helper()
	mo := &ManufacturingOrder{ProductID: productID, Qty: qty, State: state}
	if err := store.CreateManufacturingOrder(context.Background(), mo); err != nil {
		t.Fatalf("CreateManufacturingOrder: %v", err)
	}
}

// TestOrderSummary_ReconcilesThreeStreams covers the reference scenario:
// two products under one template, order lines summing to 5 and 3, no
// manufacturing, one completed outgoing movement of 2 for the first product.
func TestOrderSummary_ReconcilesThreeStreams(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	t1 := mustCreateTemplate(t, store, "T1")
	p1 := mustCreateProduct(t, store, t1.ID, "P1")
	p2 := mustCreateProduct(t, store, t1.ID, "P2")

	mustCreateOrderLine(t, store, p1.ID, 2)
	mustCreateOrderLine(t, store, p1.ID, 3)
	mustCreateOrderLine(t, store, p2.ID, 3)

	delivery := mustCreateDelivery(t, store, "OUT/001", DeliveryTypeOutgoing)
	mustCreateMove(t, store, p1.ID, &delivery.ID, 2, StateDone)

	rows, err := store.OrderSummary(ctx, SummaryFilter{})
	if err != nil {
		t.Fatalf("OrderSummary: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	want := []SummaryRow{
		{TemplateID: t1.ID, TemplateName: "T1", ProductID: p1.ID, DefaultCode: "P1",
			OrderedQty: 5, ManufacturedQty: 0, DeliveredQty: 2},
		{TemplateID: t1.ID, TemplateName: "T1", ProductID: p2.ID, DefaultCode: "P2",
			OrderedQty: 3, ManufacturedQty: 0, DeliveredQty: 0},
	}
	for i, w := range want {
		if *rows[i] != w {
			t.Errorf("row %d = %+v, want %+v", i, *rows[i], w)
		}
	}
}

func TestOrderSummary_ZeroActivityProductsAppear(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	t1 := mustCreateTemplate(t, store, "T1")
	p := mustCreateProduct(t, store, t1.ID, "IDLE")

	rows, err := store.OrderSummary(context.Background(), SummaryFilter{})
	if err != nil {
		t.Fatalf("OrderSummary: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.ProductID != p.ID || r.OrderedQty != 0 || r.ManufacturedQty != 0 || r.DeliveredQty != 0 {
		t.Errorf("idle product row = %+v, want zero quantities", *r)
	}
}

func TestOrderSummary_TemplateScope(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	t1 := mustCreateTemplate(t, store, "Alpha")
	t2 := mustCreateTemplate(t, store, "Beta")
	mustCreateProduct(t, store, t1.ID, "A1")
	p2 := mustCreateProduct(t, store, t2.ID, "B1")

	rows, err := store.OrderSummary(ctx, SummaryFilter{TemplateIDs: []int64{t2.ID}})
	if err != nil {
		t.Fatalf("OrderSummary: %v", err)
	}
	if len(rows) != 1 || rows[0].ProductID != p2.ID {
		t.Fatalf("expected only product %d in scope, got %+v", p2.ID, rows)
	}
}

// TestOrderSummary_EmptyFilterIsNotAbsentFilter verifies the invariant that
// an explicit empty id set and an absent filter behave differently.
func TestOrderSummary_EmptyFilterIsNotAbsentFilter(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	t1 := mustCreateTemplate(t, store, "T1")
	p := mustCreateProduct(t, store, t1.ID, "P1")
	delivery := mustCreateDelivery(t, store, "OUT/001", DeliveryTypeOutgoing)
	mustCreateMove(t, store, p.ID, &delivery.ID, 4, StateDone)

	// Explicit empty template scope: no products participate.
	rows, err := store.OrderSummary(ctx, SummaryFilter{TemplateIDs: []int64{}})
	if err != nil {
		t.Fatalf("OrderSummary with empty template scope: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("empty template scope returned %d rows, want 0", len(rows))
	}

	// Explicit empty delivery filter: products appear, delivered is zero.
	rows, err = store.OrderSummary(ctx, SummaryFilter{DeliveryIDs: []int64{}})
	if err != nil {
		t.Fatalf("OrderSummary with empty delivery filter: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].DeliveredQty != 0 {
		t.Errorf("delivered = %v with empty delivery filter, want 0", rows[0].DeliveredQty)
	}

	// Absent filters: everything counts.
	rows, err = store.OrderSummary(ctx, SummaryFilter{})
	if err != nil {
		t.Fatalf("OrderSummary unscoped: %v", err)
	}
	if len(rows) != 1 || rows[0].DeliveredQty != 4 {
		t.Errorf("unscoped rows = %+v, want delivered 4", rows)
	}
}

func TestOrderSummary_DeliveryFilterOnlyRestrictsDelivered(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	t1 := mustCreateTemplate(t, store, "T1")
	p := mustCreateProduct(t, store, t1.ID, "P1")
	mustCreateOrderLine(t, store, p.ID, 10)
	mustCreateManufacturing(t, store, p.ID, 6, StateDone)

	d1 := mustCreateDelivery(t, store, "OUT/001", DeliveryTypeOutgoing)
	d2 := mustCreateDelivery(t, store, "OUT/002", DeliveryTypeOutgoing)
	mustCreateMove(t, store, p.ID, &d1.ID, 2, StateDone)
	mustCreateMove(t, store, p.ID, &d2.ID, 3, StateDone)

	rows, err := store.OrderSummary(ctx, SummaryFilter{DeliveryIDs: []int64{d1.ID}})
	if err != nil {
		t.Fatalf("OrderSummary: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.OrderedQty != 10 || r.ManufacturedQty != 6 {
		t.Errorf("ordered/manufactured affected by delivery filter: %+v", *r)
	}
	if r.DeliveredQty != 2 {
		t.Errorf("delivered = %v, want 2 (only delivery %d in scope)", r.DeliveredQty, d1.ID)
	}
}

func TestOrderSummary_ExcludesIrrelevantMovements(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	t1 := mustCreateTemplate(t, store, "T1")
	p := mustCreateProduct(t, store, t1.ID, "P1")

	out := mustCreateDelivery(t, store, "OUT/001", DeliveryTypeOutgoing)
	in := mustCreateDelivery(t, store, "IN/001", "incoming")

	mustCreateMove(t, store, p.ID, &out.ID, 7, StateDone)     // counts
	mustCreateMove(t, store, p.ID, &out.ID, 5, StateDraft)    // not done
	mustCreateMove(t, store, p.ID, &out.ID, 4, StateCancel)   // canceled
	mustCreateMove(t, store, p.ID, &in.ID, 9, StateDone)      // wrong direction
	mustCreateMove(t, store, p.ID, nil, 3, StateDone)         // no delivery document

	mustCreateManufacturing(t, store, p.ID, 8, StateDone)  // counts
	mustCreateManufacturing(t, store, p.ID, 2, StateDraft) // in progress

	rows, err := store.OrderSummary(ctx, SummaryFilter{})
	if err != nil {
		t.Fatalf("OrderSummary: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].DeliveredQty != 7 {
		t.Errorf("delivered = %v, want 7", rows[0].DeliveredQty)
	}
	if rows[0].ManufacturedQty != 8 {
		t.Errorf("manufactured = %v, want 8", rows[0].ManufacturedQty)
	}
}

func TestOrderSummary_OrderingAndTieBreak(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	beta := mustCreateTemplate(t, store, "Beta")
	alpha := mustCreateTemplate(t, store, "Alpha")

	// Same template name ordering key, same code: product id breaks the tie.
	pB2 := mustCreateProduct(t, store, beta.ID, "X")
	pB1 := mustCreateProduct(t, store, beta.ID, "X")
	pA := mustCreateProduct(t, store, alpha.ID, "Z")

	rows, err := store.OrderSummary(ctx, SummaryFilter{})
	if err != nil {
		t.Fatalf("OrderSummary: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].ProductID != pA.ID {
		t.Errorf("row 0 = %+v, want Alpha product first", *rows[0])
	}
	// pB2 was created before pB1, so it has the lower id.
	if rows[1].ProductID != pB2.ID || rows[2].ProductID != pB1.ID {
		t.Errorf("tie not broken by product id ascending: got %d then %d, want %d then %d",
			rows[1].ProductID, rows[2].ProductID, pB2.ID, pB1.ID)
	}
}

func TestOrderSummary_Idempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	t1 := mustCreateTemplate(t, store, "T1")
	p := mustCreateProduct(t, store, t1.ID, "P1")
	mustCreateOrderLine(t, store, p.ID, 5)

	first, err := store.OrderSummary(ctx, SummaryFilter{})
	if err != nil {
		t.Fatalf("OrderSummary (first): %v", err)
	}
	second, err := store.OrderSummary(ctx, SummaryFilter{})
	if err != nil {
		t.Fatalf("OrderSummary (second): %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if *first[i] != *second[i] {
			t.Errorf("row %d differs: %+v vs %+v", i, *first[i], *second[i])
		}
	}
}

func TestOrderSummary_DecimalQuantities(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	t1 := mustCreateTemplate(t, store, "T1")
	p := mustCreateProduct(t, store, t1.ID, "P1")
	mustCreateOrderLine(t, store, p.ID, 2.5)
	mustCreateOrderLine(t, store, p.ID, 0.25)

	rows, err := store.OrderSummary(ctx, SummaryFilter{})
	if err != nil {
		t.Fatalf("OrderSummary: %v", err)
	}
	if rows[0].OrderedQty != 2.75 {
		t.Errorf("ordered = %v, want 2.75 (no integer truncation)", rows[0].OrderedQty)
	}
}

func BenchmarkOrderSummary(b *testing.B) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		b.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		tmpl := &ProductTemplate{Name: "Template"}
		if err := store.CreateTemplate(ctx, tmpl); err != nil {
			b.Fatal(err)
		}
		delivery := &Delivery{Name: "OUT", TypeCode: DeliveryTypeOutgoing}
		if err := store.CreateDelivery(ctx, delivery); err != nil {
			b.Fatal(err)
		}
		for j := 0; j < 50; j++ {
			p := &Product{TemplateID: tmpl.ID, DefaultCode: "P"}
			if err := store.CreateProduct(ctx, p); err != nil {
				b.Fatal(err)
			}
			if err := store.CreateOrderLine(ctx, &SaleOrderLine{ProductID: p.ID, Qty: 5}); err != nil {
				b.Fatal(err)
			}
			m := &StockMove{ProductID: p.ID, DeliveryID: &delivery.ID, Qty: 2, State: StateDone}
			if err := store.CreateMove(ctx, m); err != nil {
				b.Fatal(err)
			}
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.OrderSummary(ctx, SummaryFilter{}); err != nil {
			b.Fatal(err)
		}
	}
}
