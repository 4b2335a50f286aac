package storage

import (
	"context"
)

// Movement and manufacturing states. "done" is the only terminal success
// state; "cancel" is terminal failure and never contributes to sums.
const (
	StateDraft  = "draft"
	StateDone   = "done"
	StateCancel = "cancel"
)

// DeliveryTypeOutgoing marks a delivery document whose movements leave stock.
const DeliveryTypeOutgoing = "outgoing"

// ProductTemplate is a logical product definition grouping sellable variants.
type ProductTemplate struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Product is a concrete sellable variant under a template.
type Product struct {
	ID          int64  `json:"id"`
	TemplateID  int64  `json:"template_id"`
	DefaultCode string `json:"default_code"` // internal reference / product code
}

// SaleOrderLine is one customer order line for a product.
type SaleOrderLine struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Qty       float64 `json:"qty"`
}

// ManufacturingOrder is a production record; only state "done" counts
// toward the manufactured quantity.
type ManufacturingOrder struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Qty       float64 `json:"qty"`
	State     string  `json:"state"`
}

// Delivery is a delivery document grouping outbound stock movements.
type Delivery struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TypeCode string `json:"type_code"` // "outgoing", "incoming", "internal"
}

// StockMove is a single stock movement, optionally attached to a delivery
// document. DeliveryID is nil for unattached moves (e.g. inventory
// adjustments). DeliveryType and TemplateID are denormalized on read so the
// change trigger can filter without extra lookups.
type StockMove struct {
	ID         int64   `json:"id"`
	ProductID  int64   `json:"product_id"`
	DeliveryID *int64  `json:"delivery_id,omitempty"`
	Qty        float64 `json:"qty"`
	State      string  `json:"state"`

	DeliveryType string `json:"delivery_type,omitempty"`
	TemplateID   int64  `json:"template_id,omitempty"`
}

// SummaryRow is one reconciled row of the order summary: the three quantity
// streams for a single product variant. It is a computed projection, never
// persisted. Quantities are 0 when a source has no matching records.
type SummaryRow struct {
	TemplateID      int64   `json:"template_id"`
	TemplateName    string  `json:"template_name"`
	ProductID       int64   `json:"product_id"`
	DefaultCode     string  `json:"default_code"`
	OrderedQty      float64 `json:"ordered_quantity"`
	ManufacturedQty float64 `json:"manufactured_quantity"`
	DeliveredQty    float64 `json:"delivered_quantity"`
}

// SummaryFilter narrows the products and movements that participate in the
// summary. A nil slice means unscoped; a non-nil empty slice is an explicit
// empty scope and is honored as such (empty result set / zero delivered
// contribution). The two are not interchangeable.
type SummaryFilter struct {
	TemplateIDs []int64
	DeliveryIDs []int64
}

// User is an API login principal. PasswordHash is an argon2id encoded hash
// and is never serialized.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`

	passwordHash string
}

// Store is the persistence interface for the order summary server.
// Implementations must be safe for concurrent use.
type Store interface {
	// Catalog and source records.
	CreateTemplate(ctx context.Context, t *ProductTemplate) error
	CreateProduct(ctx context.Context, p *Product) error
	CreateOrderLine(ctx context.Context, l *SaleOrderLine) error
	CreateManufacturingOrder(ctx context.Context, m *ManufacturingOrder) error
	CreateDelivery(ctx context.Context, d *Delivery) error
	CreateMove(ctx context.Context, m *StockMove) error

	// CompleteMoves transitions the given moves to state "done" and returns
	// the moves that actually changed state (moves already in a terminal
	// state are skipped). Returned moves carry DeliveryType and TemplateID.
	CompleteMoves(ctx context.Context, ids []int64) ([]*StockMove, error)

	// OrderSummary computes one SummaryRow per product in scope, ordered by
	// (template_name, default_code, product_id). The three quantity sums are
	// read in a single consistent snapshot.
	OrderSummary(ctx context.Context, filter SummaryFilter) ([]*SummaryRow, error)

	// Users and credentials.
	CreateUser(ctx context.Context, login, password string) (*User, error)
	VerifyCredentials(ctx context.Context, login, password string) (*User, error)

	// System parameters (shared configuration store, e.g. the JWT secret).
	GetParameter(ctx context.Context, key string) (string, error)
	SetParameter(ctx context.Context, key, value string) error

	Close() error
}
