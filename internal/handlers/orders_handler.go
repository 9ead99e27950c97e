package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-grocery-orderflow/internal/checkout"
	"github.com/imrishuroy/go-grocery-orderflow/internal/inventory"
	"github.com/imrishuroy/go-grocery-orderflow/internal/logging"
	"github.com/imrishuroy/go-grocery-orderflow/internal/orders"
	"github.com/imrishuroy/go-grocery-orderflow/internal/validation"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// OrderService is the engine surface the HTTP layer drives.
type OrderService interface {
	PlaceOrder(ctx context.Context, req checkout.PlaceOrderRequest) (*checkout.PlaceResult, error)
	CancelOrder(ctx context.Context, orderID string, actor checkout.Actor, reason string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string, actor checkout.Actor, notes string) (*orders.Order, error)
	GetOrder(ctx context.Context, orderID string, actor checkout.Actor) (*orders.Order, error)
	ListOrders(ctx context.Context, userID string, limit int) ([]orders.Order, error)
	History(ctx context.Context, orderID string, actor checkout.Actor) ([]orders.StatusHistory, error)
}

// StockAdjuster applies manual stock corrections.
type StockAdjuster interface {
	Adjust(ctx context.Context, productID string, delta int) (*inventory.Product, error)
}

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	Orders OrderService
	Stock  StockAdjuster
	Logger *zap.Logger
}

type ordersHandler struct {
	orders OrderService
	stock  StockAdjuster
}

// RegisterOrdersRoutes registers the customer and admin order routes.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	h := &ordersHandler{orders: cfg.Orders, stock: cfg.Stock}

	api := r.Group("/", RequestLogger(cfg.Logger), Identity())

	api.POST("/orders", func(c *gin.Context) {
		var req validation.PlaceOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}
		h.placeOrder(c, req)
	})
	api.GET("/orders", h.listOrders)
	api.GET("/orders/:id", h.getOrder)
	api.GET("/orders/:id/history", h.history)
	api.POST("/orders/:id/cancel", func(c *gin.Context) {
		var req validation.CancelRequest
		if err := validation.BindOptional(c, &req, v); err != nil {
			return
		}
		order, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"), actorFrom(c), req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	admin := api.Group("/admin", RequireStaff())
	admin.PATCH("/orders/:id/status", func(c *gin.Context) {
		var req validation.UpdateStatusRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, actorFrom(c), req.Notes)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})
	admin.PATCH("/products/:id/stock", func(c *gin.Context) {
		var req validation.AdjustStockRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		h.adjustStock(c, req)
	})
}

func (h *ordersHandler) placeOrder(c *gin.Context, req validation.PlaceOrderRequest) {
	actor := actorFrom(c)
	res, err := h.orders.PlaceOrder(c.Request.Context(), checkout.PlaceOrderRequest{
		UserID:           actor.UserID,
		DeliveryAddress:  req.DeliveryAddress,
		DeliveryDate:     req.DeliveryDate,
		DeliveryTimeSlot: req.DeliveryTimeSlot,
		PaymentMethod:    req.PaymentMethod,
		Notes:            req.Notes,
		PromoCode:        req.PromoCode,
		IdempotencyKey:   c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/orders/%s", res.Order.ID))
	if res.Replayed {
		c.Header("Idempotent-Replayed", "true")
		c.JSON(http.StatusOK, res.Order)
		return
	}
	c.JSON(http.StatusCreated, res.Order)
}

// listOrders returns the caller's orders. Staff may list another user's
// orders with ?user_id=.
func (h *ordersHandler) listOrders(c *gin.Context) {
	actor := actorFrom(c)
	userID := actor.UserID
	if other := strings.TrimSpace(c.Query("user_id")); other != "" && other != userID {
		if !actor.Privileged() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not_authorized", "message": "cannot list another user's orders"})
			return
		}
		userID = other
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := h.orders.ListOrders(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *ordersHandler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *ordersHandler) history(c *gin.Context) {
	hist, err := h.orders.History(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("id"), "history": hist})
}

func (h *ordersHandler) adjustStock(c *gin.Context, req validation.AdjustStockRequest) {
	if h.stock == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "not_implemented"})
		return
	}
	p, err := h.stock.Adjust(c.Request.Context(), c.Param("id"), req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}
	logging.FromContext(c.Request.Context()).Info("stock adjusted",
		zap.String("product_id", p.ProductID),
		zap.Int("delta", req.Delta),
		zap.Int("stock_quantity", p.StockQuantity),
	)
	c.JSON(http.StatusOK, gin.H{
		"product_id":     p.ProductID,
		"stock_quantity": p.StockQuantity,
		"updated_at":     p.UpdatedAt,
	})
}
