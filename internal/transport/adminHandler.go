package transport

import (
	"net/http"
	"strconv"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/ds124wfegd/courseportal/internal/service"
	"github.com/ds124wfegd/courseportal/pkg/queue"
	"github.com/gin-gonic/gin"
)

// AdminHandler serves the staff-only panel. dlq is nil when the task queue
// is disabled.
type AdminHandler struct {
	enrollmentService service.EnrollmentService
	userService       service.UserService
	dlq               queue.DLQHandler
}

func NewAdminHandler(enrollmentService service.EnrollmentService, userService service.UserService, dlq queue.DLQHandler) *AdminHandler {
	return &AdminHandler{
		enrollmentService: enrollmentService,
		userService:       userService,
		dlq:               dlq,
	}
}

type SetRoleRequest struct {
	Role entity.Role `json:"role" binding:"required"`
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if users == nil {
		users = []*entity.User{}
	}

	c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) SetEnrollment(c *gin.Context) {
	var req service.SetEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.enrollmentService.AdminSetEnrollment(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) SetRole(c *gin.Context) {
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.userService.UpdateRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) SetSeats(c *gin.Context) {
	courseID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req service.SetSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.enrollmentService.AdminSetSeats(c.Request.Context(), courseID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) ListWaitlist(c *gin.Context) {
	entries, err := h.enrollmentService.ListWaitlist(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []*entity.WaitlistEntryWithUser{}
	}

	c.JSON(http.StatusOK, entries)
}

func (h *AdminHandler) RemoveWaitlistEntry(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.enrollmentService.AdminRemoveWaitlistEntry(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *AdminHandler) ListFailedTasks(c *gin.Context) {
	if !h.queueEnabled(c) {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	tasks, err := h.dlq.GetFailedTasks(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if tasks == nil {
		tasks = []*queue.FailedTask{}
	}

	c.JSON(http.StatusOK, tasks)
}

func (h *AdminHandler) RequeueFailedTask(c *gin.Context) {
	if !h.queueEnabled(c) {
		return
	}

	if err := h.dlq.RequeueFailedTask(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "task requeued"})
}

func (h *AdminHandler) DeleteFailedTask(c *gin.Context) {
	if !h.queueEnabled(c) {
		return
	}

	if err := h.dlq.DeleteFailedTask(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "task deleted"})
}

func (h *AdminHandler) queueEnabled(c *gin.Context) bool {
	if h.dlq != nil {
		return true
	}
	c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Error: "task queue is disabled"})
	return false
}
