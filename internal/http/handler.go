package http

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lpr-service/internal/domain/lpr"
	"lpr-service/internal/service"
)

const confirmDeleteHeader = "X-Confirm-Delete"

type Handler struct {
	lprService *service.LPRService
	log        zerolog.Logger
}

func NewHandler(lprService *service.LPRService, log zerolog.Logger) *Handler {
	return &Handler{
		lprService: lprService,
		log:        log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/observations", h.recordObservation)
		public.GET("/events", h.listEvents)
		public.GET("/events/recent", h.recentEvents)
		public.GET("/events/search", h.searchEvents)
		public.GET("/events/date/:date", h.eventsOnDate)
		public.GET("/events/similar", h.similarPlates)
		public.GET("/events/duplicates", h.duplicatePlates)
		public.GET("/events/:id", h.getEvent)
		public.GET("/events/:id/image", h.eventImage)
		public.GET("/stats", h.statistics)
		public.GET("/watchlist", h.listWatchlist)
		public.GET("/alerts", h.listAlerts)
	}

	// Admin endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/watchlist", h.addWatchlistEntry)
		protected.DELETE("/watchlist/:plate", h.removeWatchlistEntry)
		protected.POST("/watchlist/:plate/deactivate", h.deactivateWatchlistEntry)
		protected.POST("/alerts/:id/resolve", h.resolveAlert)
		protected.DELETE("/events/:id", h.deleteEvent)
		protected.DELETE("/events", h.deleteAllEvents)
		protected.POST("/events/purge", h.purgeEvents)
		protected.GET("/tombstones", h.listTombstones)
		protected.POST("/tombstones/:id/restore", h.restoreEvent)
	}
}

func (h *Handler) recordObservation(c *gin.Context) {
	var obs lpr.Observation
	if err := c.ShouldBindJSON(&obs); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result, err := h.lprService.RecordObservation(c.Request.Context(), obs)
	if err != nil {
		h.handleError(c, err)
		return
	}

	status := http.StatusOK
	if result.Accepted {
		status = http.StatusCreated
	}
	c.JSON(status, successResponse(result))
}

func (h *Handler) listEvents(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	offset := queryInt(c, "offset", 0)
	c.JSON(http.StatusOK, successResponse(h.lprService.FindEvents(c.Request.Context(), limit, offset)))
}

func (h *Handler) recentEvents(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	c.JSON(http.StatusOK, successResponse(h.lprService.RecentEvents(c.Request.Context(), limit)))
}

func (h *Handler) searchEvents(c *gin.Context) {
	events, err := h.lprService.SearchEvents(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) eventsOnDate(c *gin.Context) {
	date, err := time.ParseInLocation("2006-01-02", c.Param("date"), time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("date must be YYYY-MM-DD"))
		return
	}
	c.JSON(http.StatusOK, successResponse(h.lprService.EventsOnDate(c.Request.Context(), date)))
}

func (h *Handler) similarPlates(c *gin.Context) {
	threshold := service.DefaultSimilarityThreshold
	if t := strings.TrimSpace(c.Query("threshold")); t != "" {
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			c.JSON(http.StatusBadRequest, errorResponse("threshold must be between 0 and 1"))
			return
		}
		threshold = parsed
	}

	similar, err := h.lprService.FindSimilar(c.Request.Context(), c.Query("plate"), threshold)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(similar))
}

func (h *Handler) duplicatePlates(c *gin.Context) {
	window := service.DefaultDuplicateWindow
	if w := strings.TrimSpace(c.Query("window")); w != "" {
		parsed, err := strconv.Atoi(w)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("window must be an integer number of minutes"))
			return
		}
		window = parsed
	}

	groups, err := h.lprService.FindDuplicates(c.Request.Context(), window)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(groups))
}

func (h *Handler) getEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	event, err := h.lprService.GetEvent(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(event))
}

func (h *Handler) eventImage(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	f, err := h.lprService.OpenEventImage(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer f.Close()

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	http.ServeContent(c.Writer, c.Request, filepath.Base(f.Name()), modTime, f)
}

func (h *Handler) statistics(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.lprService.Statistics(c.Request.Context())))
}

func (h *Handler) listWatchlist(c *gin.Context) {
	activeOnly := queryBool(c, "active_only", true)
	c.JSON(http.StatusOK, successResponse(h.lprService.ListWatchlist(c.Request.Context(), activeOnly)))
}

func (h *Handler) listAlerts(c *gin.Context) {
	unresolvedOnly := queryBool(c, "unresolved_only", true)
	c.JSON(http.StatusOK, successResponse(h.lprService.ListAlerts(c.Request.Context(), unresolvedOnly)))
}

type watchlistRequest struct {
	Plate     string `json:"plate" binding:"required"`
	Reason    string `json:"reason"`
	AlertType string `json:"alert_type"`
}

func (h *Handler) addWatchlistEntry(c *gin.Context) {
	var req watchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	entry, err := h.lprService.AddWatchlistEntry(c.Request.Context(), req.Plate, req.Reason, req.AlertType)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(entry))
}

func (h *Handler) removeWatchlistEntry(c *gin.Context) {
	plate := c.Param("plate")
	if err := h.lprService.RemoveWatchlistEntry(c.Request.Context(), plate); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"plate": plate, "removed": true}))
}

func (h *Handler) deactivateWatchlistEntry(c *gin.Context) {
	plate := c.Param("plate")
	if err := h.lprService.DeactivateWatchlistEntry(c.Request.Context(), plate); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"plate": plate, "active": false}))
}

func (h *Handler) resolveAlert(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.lprService.ResolveAlert(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"id": id, "resolved": true}))
}

func (h *Handler) deleteEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	reason := c.DefaultQuery("reason", "manual deletion")

	tomb, err := h.lprService.DeleteEvent(c.Request.Context(), id, reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(tomb))
}

func (h *Handler) deleteAllEvents(c *gin.Context) {
	n, err := h.lprService.DeleteAllEvents(c.Request.Context(), c.GetHeader(confirmDeleteHeader))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": n}))
}

func (h *Handler) purgeEvents(c *gin.Context) {
	var req lpr.Purge
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	n, err := h.lprService.Purge(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": n}))
}

func (h *Handler) listTombstones(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	c.JSON(http.StatusOK, successResponse(h.lprService.ListTombstones(c.Request.Context(), limit)))
}

func (h *Handler) restoreEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	eventID, err := h.lprService.Restore(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(gin.H{"event_id": eventID}))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrAlreadyExists):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse("invalid id"))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func queryBool(c *gin.Context, key string, def bool) bool {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}
