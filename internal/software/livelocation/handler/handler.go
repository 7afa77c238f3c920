package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/general/httpapi"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
)

// LiveLocationHTTPHandler serves the seller's read-only view of a committed driver.
type LiveLocationHTTPHandler struct {
	svc    ports.LiveLocationService
	logger *logger.Logger
}

func NewLiveLocationHTTPHandler(svc ports.LiveLocationService, logger *logger.Logger) *LiveLocationHTTPHandler {
	return &LiveLocationHTTPHandler{svc: svc, logger: logger}
}

// RegisterRoutes mounts GET /contacts/:id/driver-location.
func (handler *LiveLocationHTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/contacts/:id/driver-location", handler.handleDriverLocation)
}

func (handler *LiveLocationHTTPHandler) handleDriverLocation(c *gin.Context) {
	id, err := httpapi.ParseID(c, "id")
	if err != nil {
		httpapi.Fail(c, handler.logger, "driver_location_failed", err)
		return
	}

	ctx, cancel := context.WithTimeout(httpapi.Ctx(c), 10*time.Second)
	defer cancel()

	view, err := handler.svc.DriverLocation(ctx, id)
	if err != nil {
		httpapi.Fail(c, handler.logger, "driver_location_failed", err)
		return
	}
	c.JSON(http.StatusOK, view)
}
