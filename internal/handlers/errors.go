package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-grocery-orderflow/internal/apperr"
	"github.com/imrishuroy/go-grocery-orderflow/internal/logging"
)

// writeError maps an engine error to a JSON response. Internal failures are
// logged and their detail is not exposed.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"error": apperr.Kind(err)}

	var stock *apperr.InsufficientStockError
	var appErr *apperr.Error
	switch {
	case errors.As(err, &stock):
		body["message"] = stock.Error()
		body["product_id"] = stock.ProductID
		body["requested"] = stock.Requested
		if stock.Available >= 0 {
			body["available"] = stock.Available
		}
	case errors.As(err, &appErr):
		body["message"] = appErr.Message
	case status >= http.StatusInternalServerError:
		body["message"] = "internal error"
	default:
		body["message"] = err.Error()
	}

	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}
