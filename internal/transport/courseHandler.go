package transport

import (
	"net/http"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/ds124wfegd/courseportal/internal/service"
	"github.com/gin-gonic/gin"
)

type CourseHandler struct {
	catalogService service.CatalogService
}

func NewCourseHandler(catalogService service.CatalogService) *CourseHandler {
	return &CourseHandler{catalogService: catalogService}
}

func (h *CourseHandler) GetLines(c *gin.Context) {
	lines, err := h.catalogService.GetLines(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if lines == nil {
		lines = []*entity.Line{}
	}

	c.JSON(http.StatusOK, lines)
}

func (h *CourseHandler) GetLineCourses(c *gin.Context) {
	line, err := h.catalogService.GetLineWithCourses(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, line)
}

func (h *CourseHandler) GetAllCourses(c *gin.Context) {
	courses, err := h.catalogService.GetAllCourses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if courses == nil {
		courses = []*entity.Course{}
	}

	c.JSON(http.StatusOK, courses)
}

func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	course, err := h.catalogService.GetCourse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

func (h *CourseHandler) CreateLine(c *gin.Context) {
	var req service.CreateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	line, err := h.catalogService.CreateLine(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, line)
}

func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	course, err := h.catalogService.CreateCourse(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, course)
}

func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	course, err := h.catalogService.UpdateCourse(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}
