package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vitalsync/vitalsync-backend/internal/pkg/errors"
	"github.com/vitalsync/vitalsync-backend/internal/requestdata"
	"github.com/vitalsync/vitalsync-backend/internal/services"
)

type MetricsHandler struct {
	metricsService services.MetricsService
}

func NewMetricsHandler(metricsService services.MetricsService) *MetricsHandler {
	return &MetricsHandler{metricsService: metricsService}
}

// Best is GET /api/metrics/best?date=YYYY-MM-DD&metric=<type>. It returns
// the single authoritative observation for the slot.
func (mh *MetricsHandler) Best(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}
	date := c.Query("date")
	metric := c.Query("metric")

	best, err := mh.metricsService.BestValue(c.Request.Context(), rd.UserID, date, metric)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			RespondError(c, http.StatusNotFound, "not_found", err)
		case errors.Is(err, apperrors.ErrInvalidArgument):
			RespondError(c, http.StatusBadRequest, "invalid_argument", err)
		default:
			RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		}
		return
	}
	RespondOK(c, best)
}

// List is GET /api/metrics?date=YYYY-MM-DD: every source's observation for
// the day, the full cross-device history.
func (mh *MetricsHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}
	date := c.Query("date")

	rows, err := mh.metricsService.ListObservations(c.Request.Context(), rd.UserID, date)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidArgument) {
			RespondError(c, http.StatusBadRequest, "invalid_argument", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	RespondOK(c, gin.H{"observations": rows})
}

// Summary is GET /api/summary?date=YYYY-MM-DD.
func (mh *MetricsHandler) Summary(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}
	date := c.Query("date")

	summary, err := mh.metricsService.GetSummary(c.Request.Context(), rd.UserID, date)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			RespondError(c, http.StatusNotFound, "not_found", err)
		case errors.Is(err, apperrors.ErrInvalidArgument):
			RespondError(c, http.StatusBadRequest, "invalid_argument", err)
		default:
			RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		}
		return
	}
	RespondOK(c, summary)
}
