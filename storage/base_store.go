package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// BaseStore implements Store on top of database/sql using a Dialect for
// backend-specific syntax. SQLiteStore and PostgresStore embed it.
type BaseStore struct {
	db      *sql.DB
	dialect Dialect
}

// DB exposes the underlying handle for backend-specific code and tests.
func (s *BaseStore) DB() *sql.DB { return s.db }

func (s *BaseStore) initSchema() error {
	d := s.dialect
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS product_templates (
			id %s,
			name TEXT NOT NULL
		)`, d.AutoIncrement()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			id %s,
			template_id BIGINT NOT NULL REFERENCES product_templates(id),
			default_code TEXT NOT NULL DEFAULT ''
		)`, d.AutoIncrement()),
		`CREATE INDEX IF NOT EXISTS idx_products_template_id ON products(template_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sale_order_lines (
			id %s,
			product_id BIGINT NOT NULL REFERENCES products(id),
			qty %s NOT NULL DEFAULT 0
		)`, d.AutoIncrement(), d.NumericType()),
		`CREATE INDEX IF NOT EXISTS idx_order_lines_product_id ON sale_order_lines(product_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS manufacturing_orders (
			id %s,
			product_id BIGINT NOT NULL REFERENCES products(id),
			qty %s NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT 'draft'
		)`, d.AutoIncrement(), d.NumericType()),
		`CREATE INDEX IF NOT EXISTS idx_manufacturing_product_id ON manufacturing_orders(product_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS deliveries (
			id %s,
			name TEXT NOT NULL DEFAULT '',
			type_code TEXT NOT NULL DEFAULT 'outgoing'
		)`, d.AutoIncrement()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stock_moves (
			id %s,
			product_id BIGINT NOT NULL REFERENCES products(id),
			delivery_id BIGINT REFERENCES deliveries(id),
			qty %s NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT 'draft'
		)`, d.AutoIncrement(), d.NumericType()),
		`CREATE INDEX IF NOT EXISTS idx_stock_moves_product_id ON stock_moves(product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_moves_delivery_id ON stock_moves(delivery_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			login TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL
		)`, d.AutoIncrement()),

		`CREATE TABLE IF NOT EXISTS system_parameters (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

func (s *BaseStore) insertReturningID(ctx context.Context, table string, columns []string, args ...interface{}) (int64, error) {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = s.dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert into %s failed: %w", table, err)
	}
	return id, nil
}

// CreateTemplate inserts a product template and fills in its id.
func (s *BaseStore) CreateTemplate(ctx context.Context, t *ProductTemplate) error {
	id, err := s.insertReturningID(ctx, "product_templates", []string{"name"}, t.Name)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// CreateProduct inserts a product variant and fills in its id.
func (s *BaseStore) CreateProduct(ctx context.Context, p *Product) error {
	id, err := s.insertReturningID(ctx, "products",
		[]string{"template_id", "default_code"}, p.TemplateID, p.DefaultCode)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// CreateOrderLine inserts a sale order line and fills in its id.
func (s *BaseStore) CreateOrderLine(ctx context.Context, l *SaleOrderLine) error {
	id, err := s.insertReturningID(ctx, "sale_order_lines",
		[]string{"product_id", "qty"}, l.ProductID, l.Qty)
	if err != nil {
		return err
	}
	l.ID = id
	return nil
}

// CreateManufacturingOrder inserts a production record and fills in its id.
func (s *BaseStore) CreateManufacturingOrder(ctx context.Context, m *ManufacturingOrder) error {
	if m.State == "" {
		m.State = StateDraft
	}
	id, err := s.insertReturningID(ctx, "manufacturing_orders",
		[]string{"product_id", "qty", "state"}, m.ProductID, m.Qty, m.State)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// CreateDelivery inserts a delivery document and fills in its id.
func (s *BaseStore) CreateDelivery(ctx context.Context, d *Delivery) error {
	if d.TypeCode == "" {
		d.TypeCode = DeliveryTypeOutgoing
	}
	id, err := s.insertReturningID(ctx, "deliveries",
		[]string{"name", "type_code"}, d.Name, d.TypeCode)
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// CreateMove inserts a stock movement and fills in its id.
func (s *BaseStore) CreateMove(ctx context.Context, m *StockMove) error {
	if m.State == "" {
		m.State = StateDraft
	}
	var deliveryID interface{}
	if m.DeliveryID != nil {
		deliveryID = *m.DeliveryID
	}
	id, err := s.insertReturningID(ctx, "stock_moves",
		[]string{"product_id", "delivery_id", "qty", "state"},
		m.ProductID, deliveryID, m.Qty, m.State)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// CompleteMoves marks the given moves done and returns only the moves that
// actually transitioned: moves already in a terminal state are left alone and
// not returned, so a repeated call cannot re-fire the change trigger.
func (s *BaseStore) CompleteMoves(ctx context.Context, ids []int64) ([]*StockMove, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, StateDone)
	clause, args, _ := inClause(s.dialect, "id", ids, 2, args)
	update := fmt.Sprintf(
		"UPDATE stock_moves SET state = %s WHERE %s AND state NOT IN ('done', 'cancel') RETURNING id",
		s.dialect.Placeholder(1), clause)

	rows, err := tx.QueryContext(ctx, update, args...)
	if err != nil {
		return nil, fmt.Errorf("complete moves: %w", err)
	}
	var changed []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan completed move id: %w", err)
		}
		changed = append(changed, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(changed) == 0 {
		return nil, tx.Commit()
	}

	selArgs := make([]interface{}, 0, len(changed))
	selClause, selArgs, _ := inClause(s.dialect, "m.id", changed, 1, selArgs)
	query := fmt.Sprintf(`
		SELECT m.id, m.product_id, m.delivery_id, m.qty, m.state,
		       COALESCE(d.type_code, ''), p.template_id
		FROM stock_moves m
		JOIN products p ON m.product_id = p.id
		LEFT JOIN deliveries d ON m.delivery_id = d.id
		WHERE %s
		ORDER BY m.id`, selClause)

	moveRows, err := tx.QueryContext(ctx, query, selArgs...)
	if err != nil {
		return nil, fmt.Errorf("load completed moves: %w", err)
	}
	defer moveRows.Close()

	var moves []*StockMove
	for moveRows.Next() {
		var m StockMove
		var deliveryID sql.NullInt64
		if err := moveRows.Scan(&m.ID, &m.ProductID, &deliveryID, &m.Qty, &m.State,
			&m.DeliveryType, &m.TemplateID); err != nil {
			return nil, fmt.Errorf("scan completed move: %w", err)
		}
		if deliveryID.Valid {
			v := deliveryID.Int64
			m.DeliveryID = &v
		}
		moves = append(moves, &m)
	}
	if err := moveRows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit move completion: %w", err)
	}
	return moves, nil
}

// CreateUser hashes the password with argon2id and stores the user.
func (s *BaseStore) CreateUser(ctx context.Context, login, password string) (*User, error) {
	if login == "" || password == "" {
		return nil, fmt.Errorf("login and password required")
	}
	hash, err := hashArgon(password)
	if err != nil {
		return nil, err
	}
	id, err := s.insertReturningID(ctx, "users",
		[]string{"login", "password_hash"}, login, hash)
	if err != nil {
		return nil, err
	}
	return &User{ID: id, Login: login, passwordHash: hash}, nil
}

// VerifyCredentials checks a login/password pair and returns the user on
// success, or nil with no error when the credentials do not match.
func (s *BaseStore) VerifyCredentials(ctx context.Context, login, password string) (*User, error) {
	query := fmt.Sprintf("SELECT id, login, password_hash FROM users WHERE login = %s",
		s.dialect.Placeholder(1))

	var u User
	err := s.db.QueryRowContext(ctx, query, login).Scan(&u.ID, &u.Login, &u.passwordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := verifyArgonHash(password, u.passwordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// GetParameter returns the value of a system parameter, or "" when unset.
// Callers read parameters on every use so a rotation takes effect on the
// next call without a restart.
func (s *BaseStore) GetParameter(ctx context.Context, key string) (string, error) {
	query := fmt.Sprintf("SELECT value FROM system_parameters WHERE key = %s",
		s.dialect.Placeholder(1))

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", key, err)
	}
	return value, nil
}

// SetParameter upserts a system parameter.
func (s *BaseStore) SetParameter(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(
		"INSERT INTO system_parameters (key, value) VALUES (%s, %s) %s DO UPDATE SET value = %s",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2),
		s.dialect.UpsertConflict([]string{"key"}), s.dialect.Placeholder(3))

	if _, err := s.db.ExecContext(ctx, query, key, value, value); err != nil {
		return fmt.Errorf("set parameter %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *BaseStore) Close() error {
	return s.db.Close()
}
