// Package checkout turns carts into orders and drives them through their
// lifecycle. Every state change commits as a single DynamoDB transaction
// together with the stock movements and audit rows it implies.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
	"github.com/imrishuroy/go-grocery-orderflow/internal/carts"
	"github.com/imrishuroy/go-grocery-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-grocery-orderflow/internal/inventory"
	"github.com/imrishuroy/go-grocery-orderflow/internal/orders"
	"github.com/imrishuroy/go-grocery-orderflow/internal/pricing"
	"github.com/imrishuroy/go-grocery-orderflow/internal/promotions"
)

// MaxCartLines bounds the distinct products of one order. A placement writes
// one item per product plus at most five more, and DynamoDB caps a
// transaction at 100 items.
const MaxCartLines = aws.MaxTransactItems - 5

// Role is the caller's privilege level.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// ParseRole maps a header value to a Role. Unknown values are customers.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleSystem:
		return RoleSystem
	default:
		return RoleCustomer
	}
}

// Actor identifies who is performing an operation.
type Actor struct {
	UserID string
	Role   Role
}

// SystemActor is used by background processing.
var SystemActor = Actor{UserID: "system", Role: RoleSystem}

// Privileged reports whether the actor may act on any order.
func (a Actor) Privileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// OrderStore persists orders and their history.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]orders.Order, error)
	History(ctx context.Context, orderID string) ([]orders.StatusHistory, error)
	CreateItem(o orders.Order) (aws.TxItem, error)
	HistoryItem(h orders.StatusHistory) (aws.TxItem, error)
	TransitionItem(t orders.Transition) aws.TxItem
}

// Inventory reads the catalog and builds stock movements.
type Inventory interface {
	inventory.Ledger
	GetProduct(ctx context.Context, productID string) (*inventory.Product, error)
}

// CartStore reads carts and builds the cart delete.
type CartStore interface {
	Get(ctx context.Context, userID string) (*carts.Cart, error)
	ClearItem(c carts.Cart) aws.TxItem
}

// PromotionStore reads codes and builds usage increments.
type PromotionStore interface {
	Lookup(ctx context.Context, code string) (*promotions.Promotion, error)
	IncrementUsage(code string) aws.TxItem
}

// IdempotencyStore remembers placement keys.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	DoneItem(rec idempotency.Record) (aws.TxItem, error)
}

// EventPublisher sends order events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, body any, attributes map[string]string) error
}

// MetricsRecorder counts engine outcomes.
type MetricsRecorder interface {
	Count(ctx context.Context, name string, value float64, dimensions map[string]string) error
}

// Deps are the collaborators of an Engine. DB, Orders, Inventory, Carts,
// Promotions and Calculator are required.
type Deps struct {
	DB          aws.DynamoDBAPI
	Orders      OrderStore
	Inventory   Inventory
	Carts       CartStore
	Promotions  PromotionStore
	Idempotency IdempotencyStore
	Calculator  *pricing.Calculator
	Events      EventPublisher
	Metrics     MetricsRecorder
	Logger      *zap.Logger
}

// Engine implements order placement, cancellation and status updates.
type Engine struct {
	db          aws.DynamoDBAPI
	orders      OrderStore
	inventory   Inventory
	carts       CartStore
	promotions  PromotionStore
	idempotency IdempotencyStore
	calc        *pricing.Calculator
	events      EventPublisher
	metrics     MetricsRecorder
	log         *zap.Logger

	now       func() time.Time
	newID     func() string
	newNumber func(time.Time) string
	txTimeout time.Duration
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides order id generation.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithTxTimeout bounds each transaction commit.
func WithTxTimeout(d time.Duration) Option {
	return func(e *Engine) { e.txTimeout = d }
}

// NewEngine wires an Engine.
func NewEngine(d Deps, opts ...Option) *Engine {
	e := &Engine{
		db:          d.DB,
		orders:      d.Orders,
		inventory:   d.Inventory,
		carts:       d.Carts,
		promotions:  d.Promotions,
		idempotency: d.Idempotency,
		calc:        d.Calculator,
		events:      d.Events,
		metrics:     d.Metrics,
		log:         d.Logger,
		now:         time.Now,
		newID:       uuid.NewString,
		newNumber:   OrderNumber,
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.calc == nil {
		e.calc = pricing.NewCalculator(pricing.DefaultConfig())
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OrderNumber formats a human readable order number for an order created at
// t: ORD-YYYYMMDD- followed by ten random ULID characters.
func OrderNumber(t time.Time) string {
	id := ulid.Make().String()
	return "ORD-" + t.UTC().Format("20060102") + "-" + strings.ToUpper(id[len(id)-10:])
}

func (e *Engine) commit(ctx context.Context, tx *aws.Tx) error {
	return tx.Commit(ctx, e.db, aws.WithTxTimeout(e.txTimeout))
}
