package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"energy-monitor/internal/baseline"
	"energy-monitor/internal/db"
	"energy-monitor/internal/ingest"
	"energy-monitor/internal/logging"
	"energy-monitor/internal/models"
	"energy-monitor/internal/query"
)

type Handler struct {
	queries   *query.Service
	db        *db.DB
	buffer    *ingest.Buffer
	estimator *baseline.Estimator
	logger    *logging.Logger
}

func NewHandler(queries *query.Service, database *db.DB, buffer *ingest.Buffer, estimator *baseline.Estimator, logger *logging.Logger) *Handler {
	return &Handler{queries: queries, db: database, buffer: buffer, estimator: estimator, logger: logger}
}

// respondQueryError maps domain states onto distinct responses so the
// dashboard can render "no data yet", "baseline not trained" and real faults
// differently.
func (h *Handler) respondQueryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"state": "no_data", "error": "no data for requested range"})
	case errors.Is(err, models.ErrInsufficientBaseline):
		c.JSON(http.StatusConflict, gin.H{"state": "insufficient_data", "error": "baseline not trained yet"})
	default:
		h.logger.Errorf("query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"state": "error", "error": "failed to compute result"})
	}
}

func (h *Handler) siteParam(c *gin.Context) (models.Site, bool) {
	site, err := models.ParseSite(c.Param("site"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return site, true
}

// rangeParams parses from/to query parameters, defaulting to the trailing
// 30 days.
func rangeParams(c *gin.Context) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t.UTC()
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t.UTC()
	}
	return from, to, nil
}

func (h *Handler) GetSites(c *gin.Context) {
	c.JSON(http.StatusOK, models.SiteCatalog)
}

func (h *Handler) GetSite(c *gin.Context) {
	site, ok := h.siteParam(c)
	if !ok {
		return
	}
	info, found := models.LookupSite(site)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) GetDashboard(c *gin.Context) {
	site, ok := h.siteParam(c)
	if !ok {
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	kpis, err := h.queries.Dashboard(c.Request.Context(), site, days)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, kpis)
}

func (h *Handler) GetHourlyPattern(c *gin.Context) {
	site, ok := h.siteParam(c)
	if !ok {
		return
	}
	from, to, err := rangeParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from/to, use RFC3339"})
		return
	}
	rows, err := h.queries.HourlyPattern(c.Request.Context(), site, from, to)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"site": site, "hourly_averages": rows})
}

func (h *Handler) GetSectorBreakdown(c *gin.Context) {
	site, ok := h.siteParam(c)
	if !ok {
		return
	}
	from, to, err := rangeParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from/to, use RFC3339"})
		return
	}
	shares, err := h.queries.SectorBreakdown(c.Request.Context(), site, from, to)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"site": site, "sectors": shares})
}

func (h *Handler) GetTrends(c *gin.Context) {
	site, ok := h.siteParam(c)
	if !ok {
		return
	}
	width, err := models.ParseBucketWidth(c.DefaultQuery("width", string(models.BucketHour)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	from, to, err := rangeParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from/to, use RFC3339"})
		return
	}
	buckets, err := h.queries.Trends(c.Request.Context(), site, width, from, to)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"site": site, "width": width, "buckets": buckets})
}

func (h *Handler) GetPareto(c *gin.Context) {
	site, ok := h.siteParam(c)
	if !ok {
		return
	}
	from, to, err := rangeParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from/to, use RFC3339"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	rows, err := h.queries.Pareto(c.Request.Context(), site, from, to, limit)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"site": site, "causes": rows})
}

func (h *Handler) GetAnomalies(c *gin.Context) {
	site, ok := h.siteParam(c)
	if !ok {
		return
	}
	from, to, err := rangeParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from/to, use RFC3339"})
		return
	}
	severity := c.Query("severity")
	if severity != "" {
		if _, err := models.ParseSeverity(severity); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.queries.Anomalies(c.Request.Context(), site, from, to, severity, limit, offset)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"site": site, "total": total, "anomalies": events})
}

func (h *Handler) GetAnomalyFeed(c *gin.Context) {
	cursor, _ := strconv.ParseInt(c.DefaultQuery("cursor", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := h.queries.AnomaliesSince(c.Request.Context(), cursor, limit)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	next := cursor
	if len(events) > 0 {
		next = events[len(events)-1].Cursor
	}
	c.JSON(http.StatusOK, gin.H{"anomalies": events, "next_cursor": next})
}

func (h *Handler) GetAnomalySummary(c *gin.Context) {
	site, ok := h.siteParam(c)
	if !ok {
		return
	}
	bySeverity, byType, err := h.db.AnomalySummary(c.Request.Context(), site)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	total := 0
	for _, n := range bySeverity {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"site": site, "total": total, "by_severity": bySeverity, "by_type": byType})
}

type statusUpdate struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) UpdateAnomalyStatus(c *gin.Context) {
	var body statusUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	next, err := models.ParseAnomalyStatus(body.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, err := h.db.UpdateAnomalyStatus(c.Request.Context(), c.Param("id"), next)
	if err != nil {
		h.logger.Errorf("anomaly status update failed: %v", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) GetIngestStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"buffered_readings": h.buffer.Len(),
		"reading_conflicts": h.buffer.Conflicts(),
		"baseline_cells":    h.estimator.CellCount(),
	})
}
