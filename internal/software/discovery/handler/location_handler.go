package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/general/httpapi"
)

// ----- Handler: GET /location -----

func (handler *DiscoveryHTTPHandler) handleLocationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, handler.location.Status())
}

// ----- Handler: POST /location/retry -----

func (handler *DiscoveryHTTPHandler) handleLocationRetry(c *gin.Context) {
	ctx, cancel := context.WithTimeout(httpapi.Ctx(c), 90*time.Second)
	defer cancel()

	st, err := handler.location.Retry(ctx)
	if err != nil {
		status, body := httpapi.Classify(err)
		body.Gate = st.Gate
		handler.logger.Info(ctx, "location_retry_rejected", "Location still unavailable", map[string]any{
			"gate":  string(st.Gate),
			"error": err.Error(),
		})
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ----- Handler: POST /location/skip -----

func (handler *DiscoveryHTTPHandler) handleLocationSkip(c *gin.Context) {
	st := handler.location.ProceedWithout()
	handler.logger.Info(httpapi.Ctx(c), "location_skipped", "User continued without a position", map[string]any{
		"gate": string(st.Gate),
	})
	c.JSON(http.StatusOK, st)
}
