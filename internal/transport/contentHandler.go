package transport

import (
	"net/http"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/ds124wfegd/courseportal/internal/service"
	"github.com/ds124wfegd/courseportal/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type ContentHandler struct {
	contentService service.ContentService
}

func NewContentHandler(contentService service.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

type SetMaintenanceRequest struct {
	Active *bool  `json:"is_active" binding:"required"`
	Reason string `json:"reason"`
}

func (h *ContentHandler) ListFAQ(c *gin.Context) {
	items, err := h.contentService.ListFAQ(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []*entity.FAQ{}
	}

	c.JSON(http.StatusOK, items)
}

func (h *ContentHandler) CreateFAQ(c *gin.Context) {
	var req service.FAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	faq, err := h.contentService.CreateFAQ(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, faq)
}

func (h *ContentHandler) UpdateFAQ(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req service.FAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	faq, err := h.contentService.UpdateFAQ(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, faq)
}

func (h *ContentHandler) DeleteFAQ(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.contentService.DeleteFAQ(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "faq entry deleted"})
}

func (h *ContentHandler) GetMaintenance(c *gin.Context) {
	state, err := h.contentService.GetMaintenance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *ContentHandler) SetMaintenance(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req SetMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	state, err := h.contentService.SetMaintenance(c.Request.Context(), *req.Active, user.Email, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}
