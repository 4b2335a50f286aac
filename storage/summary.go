package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// OrderSummary reconciles the three quantity streams into one row per
// product in scope. The whole computation is a single SQL statement run in a
// read-only transaction: each stream is one grouped aggregate CTE, outer
// joined back onto the product scope so products with no activity still
// appear with zeroes. There are no per-product round trips.
func (s *BaseStore) OrderSummary(ctx context.Context, filter SummaryFilter) ([]*SummaryRow, error) {
	// An explicit empty template scope can be answered without touching the
	// database: no products participate, so no rows come back.
	if filter.TemplateIDs != nil && len(filter.TemplateIDs) == 0 {
		return []*SummaryRow{}, nil
	}

	var (
		args          []interface{}
		next          = 1
		scopeWhere    string
		deliveryWhere string
	)

	if filter.TemplateIDs != nil {
		var clause string
		clause, args, next = inClause(s.dialect, "t.id", filter.TemplateIDs, next, args)
		scopeWhere = "WHERE " + clause
	}
	if filter.DeliveryIDs != nil {
		var clause string
		clause, args, next = inClause(s.dialect, "m.delivery_id", filter.DeliveryIDs, next, args)
		deliveryWhere = "AND " + clause
	}

	query := fmt.Sprintf(`
		WITH product_scope AS (
			SELECT p.id AS product_id,
			       t.id AS template_id,
			       t.name AS template_name,
			       p.default_code
			FROM products p
			JOIN product_templates t ON p.template_id = t.id
			%s
		),
		ordered_qty AS (
			SELECT l.product_id, SUM(l.qty) AS quantity
			FROM sale_order_lines l
			WHERE l.product_id IN (SELECT product_id FROM product_scope)
			GROUP BY l.product_id
		),
		manufactured_qty AS (
			SELECT mo.product_id, SUM(mo.qty) AS quantity
			FROM manufacturing_orders mo
			WHERE mo.product_id IN (SELECT product_id FROM product_scope)
			  AND mo.state = 'done'
			GROUP BY mo.product_id
		),
		delivered_qty AS (
			SELECT m.product_id, SUM(m.qty) AS quantity
			FROM stock_moves m
			JOIN deliveries d ON m.delivery_id = d.id
			WHERE m.product_id IN (SELECT product_id FROM product_scope)
			  AND m.state = 'done'
			  AND d.type_code = 'outgoing'
			  %s
			GROUP BY m.product_id
		)
		SELECT ps.template_id,
		       ps.template_name,
		       ps.product_id,
		       ps.default_code,
		       COALESCE(oq.quantity, 0) AS ordered_quantity,
		       COALESCE(mq.quantity, 0) AS manufactured_quantity,
		       COALESCE(dq.quantity, 0) AS delivered_quantity
		FROM product_scope ps
		LEFT JOIN ordered_qty oq ON ps.product_id = oq.product_id
		LEFT JOIN manufactured_qty mq ON ps.product_id = mq.product_id
		LEFT JOIN delivered_qty dq ON ps.product_id = dq.product_id
		ORDER BY ps.template_name, ps.default_code, ps.product_id`,
		scopeWhere, deliveryWhere)

	// A read-only transaction pins the three aggregates to one snapshot.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin summary read: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("order summary query: %w", err)
	}
	defer rows.Close()

	result := []*SummaryRow{}
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(&r.TemplateID, &r.TemplateName, &r.ProductID, &r.DefaultCode,
			&r.OrderedQty, &r.ManufacturedQty, &r.DeliveredQty); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read summary rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("close summary read: %w", err)
	}
	return result, nil
}
