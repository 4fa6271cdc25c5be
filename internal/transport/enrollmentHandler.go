package transport

import (
	"net/http"

	"github.com/ds124wfegd/courseportal/internal/service"
	"github.com/ds124wfegd/courseportal/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type EnrollmentHandler struct {
	enrollmentService service.EnrollmentService
}

func NewEnrollmentHandler(enrollmentService service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.UserID = user.ID

	result, err := h.enrollmentService.Enroll(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	result, err := h.enrollmentService.Unenroll(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *EnrollmentHandler) LeaveWaitlist(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	if err := h.enrollmentService.LeaveWaitlist(c.Request.Context(), user.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *EnrollmentHandler) GetSeats(c *gin.Context) {
	courseID, ok := parseID(c, "id")
	if !ok {
		return
	}

	seats, err := h.enrollmentService.CourseSeatStatus(c.Request.Context(), courseID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, seats)
}
