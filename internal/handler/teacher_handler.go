package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/internal/service"
	"github.com/noah-isme/docunet-api/pkg/response"
)

// TeacherHandler serves the teacher and category lookups used by the upload
// flow.
type TeacherHandler struct {
	directory *service.DirectoryService
}

// NewTeacherHandler constructs a new TeacherHandler.
func NewTeacherHandler(directory *service.DirectoryService) *TeacherHandler {
	return &TeacherHandler{directory: directory}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Param search query string false "Search by name or email"
// @Param active query bool false "Filter by active status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	filter := models.TeacherFilter{
		Search: strings.TrimSpace(c.Query("search")),
	}
	if active := c.Query("active"); active != "" {
		switch strings.ToLower(active) {
		case "true":
			val := true
			filter.Active = &val
		case "false":
			val := false
			filter.Active = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	teachers, total, err := h.directory.ListTeachers(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get teacher detail
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	teacher, err := h.directory.GetTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Categories godoc
// @Summary List document categories in rule-priority order
// @Tags Teachers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *TeacherHandler) Categories(c *gin.Context) {
	categories, err := h.directory.ListCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}
