package api

import (
	"errors"
	"net/http"

	"api_commerce/internal/catalog"
	"api_commerce/internal/entitlement"
	"api_commerce/internal/identity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// courseHandler implements HTTP handlers for course access, enrollment and content.
type courseHandler struct {
	resolver *entitlement.Resolver
	ledger   *entitlement.Ledger
	catalog  *catalog.Service
	logger   *zap.Logger
}

// NewCourseHandler creates a new course handler.
func NewCourseHandler(resolver *entitlement.Resolver, ledger *entitlement.Ledger, catalogService *catalog.Service, logger *zap.Logger) *courseHandler {
	return &courseHandler{
		resolver: resolver,
		ledger:   ledger,
		catalog:  catalogService,
		logger:   logger,
	}
}

// handleCheckAccess handles GET /courses/:id/access.
func (h *courseHandler) handleCheckAccess(ctx *gin.Context) {
	access, err := h.resolver.CheckAccess(ctx.Request.Context(), identity.UserID(ctx), ctx.Param("id"))
	if err != nil {
		writeError(ctx, h.logger, err, "course")
		return
	}
	ctx.JSON(http.StatusOK, access)
}

// handleEnroll handles POST /courses/:id/enroll. A repeat enroll answers 200 instead of 201.
func (h *courseHandler) handleEnroll(ctx *gin.Context) {
	userID := identity.UserID(ctx)
	courseID := ctx.Param("id")

	result, err := h.ledger.Enroll(ctx.Request.Context(), userID, courseID)
	if err != nil {
		h.logger.Warn("enroll rejected",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.Error(err),
		)
		writeError(ctx, h.logger, err, "course")
		return
	}

	status := http.StatusCreated
	if result == entitlement.AlreadyExists {
		status = http.StatusOK
	}
	ctx.JSON(status, gin.H{"result": result})
}

// handleCreateCourse handles POST /courses.
func (h *courseHandler) handleCreateCourse(ctx *gin.Context) {
	var req catalog.CourseInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	course, err := h.catalog.CreateCourse(ctx.Request.Context(), identity.UserID(ctx), req)
	if err != nil {
		writeError(ctx, h.logger, err, "course")
		return
	}
	ctx.JSON(http.StatusCreated, course)
}

// handleDeleteCourse handles DELETE /courses/:id.
func (h *courseHandler) handleDeleteCourse(ctx *gin.Context) {
	if err := h.catalog.DeleteCourse(ctx.Request.Context(), identity.UserID(ctx), ctx.Param("id")); err != nil {
		writeError(ctx, h.logger, err, "course")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// handleAddLesson handles POST /courses/:id/lessons.
func (h *courseHandler) handleAddLesson(ctx *gin.Context) {
	var req catalog.LessonInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	lesson, err := h.catalog.AddLesson(ctx.Request.Context(), identity.UserID(ctx), ctx.Param("id"), req)
	if err != nil {
		writeError(ctx, h.logger, err, "course")
		return
	}
	ctx.JSON(http.StatusCreated, lesson)
}

// handleListLessons handles GET /courses/:id/lessons. A denial carries the access decision.
func (h *courseHandler) handleListLessons(ctx *gin.Context) {
	lessons, access, err := h.catalog.Lessons(ctx.Request.Context(), identity.UserID(ctx), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotEntitled) {
			ctx.JSON(http.StatusForbidden, gin.H{
				"error":  err.Error(),
				"code":   "not_entitled",
				"reason": access.Reason,
				"free":   access.Free,
			})
			return
		}
		writeError(ctx, h.logger, err, "course")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": lessons, "access": access})
}
