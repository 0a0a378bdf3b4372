package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/finals-finder/internal/models"
	"github.com/noah-isme/finals-finder/internal/service"
	"github.com/noah-isme/finals-finder/internal/ui"
	appErrors "github.com/noah-isme/finals-finder/pkg/errors"
	"github.com/noah-isme/finals-finder/pkg/response"
)

const (
	viewKey           = "finder_view"
	keepaliveInterval = 25 * time.Second
)

type scheduleRenderer interface {
	Render(ctx context.Context, format string, filter models.ExamFilter) (*service.RenderedExport, error)
}

// FinderHandler serves the exam finder page and the live-view endpoints behind it.
type FinderHandler struct {
	store    *ui.Store
	renderer *ui.Renderer
	exports  scheduleRenderer
	logger   *zap.Logger
}

// NewFinderHandler constructs a finder handler.
func NewFinderHandler(store *ui.Store, renderer *ui.Renderer, exports scheduleRenderer, logger *zap.Logger) *FinderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinderHandler{store: store, renderer: renderer, exports: exports, logger: logger}
}

// Register mounts the finder routes.
func (h *FinderHandler) Register(r gin.IRouter) {
	r.GET("/", h.Index)

	views := r.Group("/views/:id", h.loadView)
	views.GET("/events", h.Events)
	views.POST("/search", h.Search)
	views.POST("/clear", h.Clear)
	views.POST("/date", h.SelectDate)
	views.POST("/building", h.SelectBuilding)
	views.POST("/scroll", h.Scroll)
	views.GET("/export.csv", h.Export(service.ExportFormatCSV))
	views.GET("/export.pdf", h.Export(service.ExportFormatPDF))
}

func (h *FinderHandler) loadView(c *gin.Context) {
	view, ok := h.store.Get(c.Param("id"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "view expired"))
		return
	}
	c.Set(viewKey, view)
	c.Next()
}

func viewFrom(c *gin.Context) *ui.View {
	return c.MustGet(viewKey).(*ui.View)
}

// Index creates a fresh view and renders the whole page.
func (h *FinderHandler) Index(c *gin.Context) {
	view := h.store.Create()

	var buf bytes.Buffer
	if err := h.renderer.Page(&buf, view); err != nil {
		h.logger.Error("render page", zap.String("view_id", view.ID), zap.Error(err))
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// Events streams re-rendered regions of the view as server-sent events until the client leaves or
// the view is evicted.
func (h *FinderHandler) Events(c *gin.Context) {
	view := viewFrom(c)
	changes, unsubscribe := view.Subscribe()
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	if !h.push(c, view) {
		return
	}
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-view.Context().Done():
			c.SSEvent("gone", view.ID)
			c.Writer.Flush()
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-changes:
			if !h.push(c, view) {
				return
			}
		}
		view.Touch()
	}
}

func (h *FinderHandler) push(c *gin.Context, view *ui.View) bool {
	regions, err := h.renderer.Regions(view.Page.Model())
	if err != nil {
		h.logger.Error("render regions", zap.String("view_id", view.ID), zap.Error(err))
		return false
	}
	for _, region := range regions {
		c.SSEvent(region.Name, region.HTML)
	}
	c.Writer.Flush()
	return true
}

// Search forwards the current search box text.
func (h *FinderHandler) Search(c *gin.Context) {
	viewFrom(c).Page.Type(c.PostForm("text"))
	c.Status(http.StatusNoContent)
}

// Clear empties the search box.
func (h *FinderHandler) Clear(c *gin.Context) {
	viewFrom(c).Page.ClearSearch()
	c.Status(http.StatusNoContent)
}

// optionalValue reads the clicked tab. A missing or empty value is the All tab.
func optionalValue(c *gin.Context) *string {
	value, ok := c.GetPostForm("value")
	if !ok || value == "" {
		return nil
	}
	return &value
}

// SelectDate applies a date tab click.
func (h *FinderHandler) SelectDate(c *gin.Context) {
	viewFrom(c).Page.SelectDate(optionalValue(c))
	c.Status(http.StatusNoContent)
}

// SelectBuilding applies a building tab click.
func (h *FinderHandler) SelectBuilding(c *gin.Context) {
	var building *ui.Building
	if value := optionalValue(c); value != nil {
		b := ui.Building(*value)
		building = &b
	}
	viewFrom(c).Page.SelectBuilding(building)
	c.Status(http.StatusNoContent)
}

// Scroll reports the result viewport position.
func (h *FinderHandler) Scroll(c *gin.Context) {
	var pos ui.ScrollPosition
	if err := c.ShouldBind(&pos); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scroll position"))
		return
	}
	requested := viewFrom(c).Page.Scroll(pos)
	c.JSON(http.StatusOK, gin.H{"requested": requested})
}

// Export downloads every exam matching the view's filters in format.
func (h *FinderHandler) Export(format string) gin.HandlerFunc {
	return func(c *gin.Context) {
		view := viewFrom(c)
		out, err := h.exports.Render(c.Request.Context(), format, view.Page.Filter())
		if err != nil {
			h.logger.Warn("schedule export failed", zap.String("view_id", view.ID), zap.String("format", format), zap.Error(err))
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.Filename))
		c.Data(http.StatusOK, out.ContentType, out.Body)
	}
}
