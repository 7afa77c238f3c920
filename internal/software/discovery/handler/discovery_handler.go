package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/general/httpapi"
	"pickup-market/internal/ports"
)

// ----- Handler: GET /discovery/items -----

func (handler *DiscoveryHTTPHandler) handleItems(c *gin.Context) {
	handler.serveList(c, "discovery_items", handler.svc.Items)
}

// ----- Handler: GET /discovery/trash -----

func (handler *DiscoveryHTTPHandler) handleTrash(c *gin.Context) {
	handler.serveList(c, "discovery_trash", handler.svc.Trash)
}

func (handler *DiscoveryHTTPHandler) serveList(c *gin.Context, action string, list func(context.Context) (ports.DiscoveryResult, error)) {
	ctx, cancel := context.WithTimeout(httpapi.Ctx(c), 15*time.Second)
	defer cancel()

	res, err := list(ctx)
	if err != nil {
		httpapi.Fail(c, handler.logger, action+"_failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
