package api

import (
	"net/http"

	"api_commerce/internal/catalog"
	"api_commerce/internal/identity"
	"api_commerce/internal/revenue"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// creatorHandler implements HTTP handlers for creator dashboards and storefronts.
type creatorHandler struct {
	revenue *revenue.Service
	catalog *catalog.Service
	logger  *zap.Logger
}

// NewCreatorHandler creates a new creator handler.
func NewCreatorHandler(revenueService *revenue.Service, catalogService *catalog.Service, logger *zap.Logger) *creatorHandler {
	return &creatorHandler{
		revenue: revenueService,
		catalog: catalogService,
		logger:  logger,
	}
}

// handleGetStats handles GET /creators/:id/stats. Only the creator may read their own stats.
func (h *creatorHandler) handleGetStats(ctx *gin.Context) {
	creatorID := ctx.Param("id")
	if !h.isSelf(ctx, creatorID) {
		return
	}

	stats, err := h.revenue.ComputeStats(ctx.Request.Context(), creatorID)
	if err != nil {
		writeError(ctx, h.logger, err, "creator")
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

// handleListCourses handles GET /creators/:id/courses, drafts included.
func (h *creatorHandler) handleListCourses(ctx *gin.Context) {
	creatorID := ctx.Param("id")
	if !h.isSelf(ctx, creatorID) {
		return
	}

	courses, err := h.catalog.ListCreatorCourses(ctx.Request.Context(), creatorID)
	if err != nil {
		writeError(ctx, h.logger, err, "creator")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": courses})
}

// handleGetStorefront handles GET /creators/:id/storefront.
func (h *creatorHandler) handleGetStorefront(ctx *gin.Context) {
	front, err := h.catalog.Storefront(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, h.logger, err, "creator")
		return
	}
	ctx.JSON(http.StatusOK, front)
}

// handleRegisterProfile handles POST /profiles.
func (h *creatorHandler) handleRegisterProfile(ctx *gin.Context) {
	var req catalog.ProfileInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	profile, err := h.catalog.RegisterProfile(ctx.Request.Context(), identity.UserID(ctx), req)
	if err != nil {
		writeError(ctx, h.logger, err, "profile")
		return
	}
	ctx.JSON(http.StatusCreated, profile)
}

// handleCreateProduct handles POST /products.
func (h *creatorHandler) handleCreateProduct(ctx *gin.Context) {
	var req catalog.ProductInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	product, err := h.catalog.CreateProduct(ctx.Request.Context(), identity.UserID(ctx), req)
	if err != nil {
		writeError(ctx, h.logger, err, "product")
		return
	}
	ctx.JSON(http.StatusCreated, product)
}

// handleDeleteProduct handles DELETE /products/:id.
func (h *creatorHandler) handleDeleteProduct(ctx *gin.Context) {
	if err := h.catalog.DeleteProduct(ctx.Request.Context(), identity.UserID(ctx), ctx.Param("id")); err != nil {
		writeError(ctx, h.logger, err, "product")
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *creatorHandler) isSelf(ctx *gin.Context, creatorID string) bool {
	if identity.UserID(ctx) == creatorID {
		return true
	}
	h.logger.Warn("creator resource requested by another user",
		zap.String("creator_id", creatorID),
		zap.String("user_id", identity.UserID(ctx)),
	)
	ctx.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "forbidden"})
	return false
}
