package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/finals-finder/internal/middleware"
	"github.com/noah-isme/finals-finder/internal/models"
	appErrors "github.com/noah-isme/finals-finder/pkg/errors"
	"github.com/noah-isme/finals-finder/pkg/response"
)

type examSearcher interface {
	Search(ctx context.Context, params models.ExamSearchParams) (*models.ExamsResponse, bool, error)
	Dates(ctx context.Context) (*models.DatesResponse, bool, error)
	Locations(ctx context.Context) (*models.LocationsResponse, bool, error)
}

// ExamHandler exposes the exam schedule endpoints.
type ExamHandler struct {
	service examSearcher
}

// NewExamHandler constructs an exam handler.
func NewExamHandler(svc examSearcher) *ExamHandler {
	return &ExamHandler{service: svc}
}

// Register mounts the exam routes on group.
func (h *ExamHandler) Register(group gin.IRoutes) {
	group.GET("/exams", h.List)
	group.GET("/filters/dates", h.Dates)
	group.GET("/filters/locations", h.Locations)
}

func positiveQueryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "Page and limit must be integers.")
	}
	if n < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, strings.ToUpper(name[:1])+name[1:]+" must be a positive integer.")
	}
	return n, nil
}

// List godoc
// @Summary Search exams
// @Description Case-insensitive search over course number, course name and CRN, combined with optional date and location filters
// @Tags Exams
// @Produce json
// @Param q query string false "Search text (max 100 characters)"
// @Param date query string false "Exam date (YYYY-MM-DD)"
// @Param location query string false "Location substring"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {object} models.ExamsResponse
// @Failure 400 {object} response.ErrorEnvelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	page, err := positiveQueryInt(c, "page")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := positiveQueryInt(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}

	params := models.ExamSearchParams{
		ExamFilter: models.ExamFilter{
			Query:    c.Query("q"),
			Date:     c.Query("date"),
			Location: c.Query("location"),
		},
		Page:  page,
		Limit: limit,
	}
	result, cacheHit, err := h.service.Search(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result.Data, &result.Pagination)
}

// Dates godoc
// @Summary List exam dates
// @Tags Filters
// @Produce json
// @Success 200 {object} models.DatesResponse
// @Router /filters/dates [get]
func (h *ExamHandler) Dates(c *gin.Context) {
	result, cacheHit, err := h.service.Dates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result.Data, nil)
}

// Locations godoc
// @Summary List exam locations grouped by building
// @Tags Filters
// @Produce json
// @Success 200 {object} models.LocationsResponse
// @Router /filters/locations [get]
func (h *ExamHandler) Locations(c *gin.Context) {
	result, cacheHit, err := h.service.Locations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result.Data, nil)
}
