package api

import (
	"errors"
	"net/http"

	"api_commerce/internal/catalog"
	"api_commerce/internal/entitlement"
	"api_commerce/internal/records"
	"api_commerce/internal/revenue"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps a service error to its HTTP status. notFound names the missing resource.
func writeError(c *gin.Context, logger *zap.Logger, err error, notFound string) {
	switch {
	case errors.Is(err, records.ErrNotFound), errors.Is(err, records.ErrEmptyID):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound + " not found", "code": "not_found"})
	case errors.Is(err, entitlement.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "unauthorized"})
	case errors.Is(err, entitlement.ErrPaymentRequired):
		msg := "payment required"
		if errors.Is(err, entitlement.ErrPaymentUnavailable) {
			msg = entitlement.ErrPaymentUnavailable.Error()
		}
		c.JSON(http.StatusPaymentRequired, gin.H{"error": msg, "code": "payment_required"})
	case errors.Is(err, catalog.ErrInvalidInput):
		body := gin.H{"error": err.Error(), "code": "invalid_input"}
		if fields := catalog.FormatValidationErrors(err); len(fields) > 0 {
			body["error"] = "validation failed"
			body["fields"] = fields
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, catalog.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "forbidden"})
	case errors.Is(err, revenue.ErrStatsUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stats unavailable", "code": "stats_unavailable"})
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
