package checkout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-grocery-orderflow/internal/carts"
	"github.com/imrishuroy/go-grocery-orderflow/internal/dynamotest"
	"github.com/imrishuroy/go-grocery-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-grocery-orderflow/internal/inventory"
	"github.com/imrishuroy/go-grocery-orderflow/internal/orders"
	"github.com/imrishuroy/go-grocery-orderflow/internal/pricing"
	"github.com/imrishuroy/go-grocery-orderflow/internal/promotions"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []orders.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, body any, _ map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := body.(orders.OrderEvent); ok {
		p.events = append(p.events, ev)
	}
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]float64
}

func (m *recordingMetrics) Count(_ context.Context, name string, value float64, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]float64{}
	}
	m.counts[name] += value
	return nil
}

func (m *recordingMetrics) get(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

type harness struct {
	fake       *dynamotest.Fake
	orders     *orders.Store
	inventory  *inventory.Store
	carts      *carts.Store
	promotions *promotions.Store
	idem       *idempotency.Store
	events     *recordingPublisher
	metrics    *recordingMetrics
	engine     *Engine
}

type harnessOption func(*Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	fake := dynamotest.New()
	fake.CreateTable("orders", "order_id", "")
	fake.CreateIndex("orders", orders.UserIndex, "user_id", "created_at")
	fake.CreateTable("order_history", "order_id", "seq")
	fake.CreateTable("products", "product_id", "")
	fake.CreateTable("carts", "user_id", "")
	fake.CreateTable("promotions", "code", "")
	fake.CreateTable("idempotency", "idempotency_key", "")

	h := &harness{
		fake:       fake,
		orders:     orders.NewStore(fake, "orders", "order_history"),
		inventory:  inventory.NewStore(fake, "products"),
		carts:      carts.NewStore(fake, "carts"),
		promotions: promotions.NewStore(fake, "promotions"),
		idem:       idempotency.NewStore(fake, "idempotency", time.Hour),
		events:     &recordingPublisher{},
		metrics:    &recordingMetrics{},
	}
	deps := Deps{
		DB:          fake,
		Orders:      h.orders,
		Inventory:   h.inventory,
		Carts:       h.carts,
		Promotions:  h.promotions,
		Idempotency: h.idem,
		Calculator:  pricing.NewCalculator(pricing.DefaultConfig()),
		Events:      h.events,
		Metrics:     h.metrics,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	var seq atomic.Int64
	h.engine = NewEngine(deps,
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("order-%03d", seq.Add(1)) }),
		WithTxTimeout(time.Second),
	)
	return h
}

func (h *harness) product(t *testing.T, id, price string, stock int) {
	t.Helper()
	require.NoError(t, h.inventory.SaveProduct(context.Background(), inventory.Product{
		ProductID:        id,
		Name:             "Product " + id,
		Price:            decimal.RequireFromString(price),
		StockQuantity:    stock,
		MaxOrderQuantity: 50,
		PriceVersion:     1,
		IsActive:         true,
	}))
}

func (h *harness) cart(t *testing.T, userID string, lines ...carts.Line) {
	t.Helper()
	c, err := h.carts.Get(context.Background(), userID)
	require.NoError(t, err)
	c.Lines = lines
	_, err = h.carts.Save(context.Background(), *c)
	require.NoError(t, err)
}

func (h *harness) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := h.inventory.GetProduct(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.StockQuantity
}

func (h *harness) promo(t *testing.T, p promotions.Promotion) {
	t.Helper()
	require.NoError(t, h.promotions.Save(context.Background(), p))
}

func line(productID string, qty int) carts.Line {
	return carts.Line{ProductID: productID, Quantity: qty}
}

func request(userID string) PlaceOrderRequest {
	return PlaceOrderRequest{
		UserID:           userID,
		DeliveryAddress:  "12 Market Street",
		DeliveryDate:     "2026-03-15",
		DeliveryTimeSlot: "09:00-11:00",
		PaymentMethod:    "cash_on_delivery",
	}
}

func customer(id string) Actor { return Actor{UserID: id, Role: RoleCustomer} }

var admin = Actor{UserID: "admin-1", Role: RoleAdmin}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}
