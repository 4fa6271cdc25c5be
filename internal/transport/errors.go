package transport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/ds124wfegd/courseportal/pkg/queue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SuccessResponse представляет успешный ответ
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidSlot),
		errors.Is(err, entity.ErrInvalidInput),
		errors.Is(err, entity.ErrInvalidSeatCount):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrCourseNotFound),
		errors.Is(err, entity.ErrUserNotFound),
		errors.Is(err, entity.ErrLineNotFound),
		errors.Is(err, entity.ErrFAQNotFound),
		errors.Is(err, entity.ErrSchoolNotFound),
		errors.Is(err, entity.ErrNotEnrolled),
		errors.Is(err, entity.ErrNotWaitlisted),
		errors.Is(err, queue.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrSlotFull),
		errors.Is(err, entity.ErrAlreadyEnrolled),
		errors.Is(err, entity.ErrAlreadyWaitlisted),
		errors.Is(err, entity.ErrEmailTaken),
		errors.Is(err, entity.ErrSchoolExists):
		return http.StatusConflict
	case errors.Is(err, entity.ErrMaintenance):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server errors are logged
// and their details are not sent to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("Request failed with internal error")
		msg = "internal server error"
	}
	c.JSON(status, ErrorResponse{Success: false, Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: msg})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
