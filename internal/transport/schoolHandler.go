package transport

import (
	"net/http"
	"strconv"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/ds124wfegd/courseportal/internal/service"
	"github.com/gin-gonic/gin"
)

type SchoolHandler struct {
	schoolService service.SchoolService
}

func NewSchoolHandler(schoolService service.SchoolService) *SchoolHandler {
	return &SchoolHandler{schoolService: schoolService}
}

// ListSchools returns active schools; ?include_inactive=true adds the rest.
func (h *SchoolHandler) ListSchools(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))

	schools, err := h.schoolService.ListSchools(c.Request.Context(), includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	if schools == nil {
		schools = []*entity.School{}
	}

	c.JSON(http.StatusOK, schools)
}

func (h *SchoolHandler) CreateSchool(c *gin.Context) {
	var req service.SchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	school, reactivated, err := h.schoolService.CreateSchool(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if reactivated {
		c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "school reactivated", Data: school})
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Message: "school created", Data: school})
}

func (h *SchoolHandler) UpdateSchool(c *gin.Context) {
	var req service.UpdateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	school, err := h.schoolService.UpdateSchool(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, school)
}

func (h *SchoolHandler) DeactivateSchool(c *gin.Context) {
	if err := h.schoolService.DeactivateSchool(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "school deactivated"})
}
