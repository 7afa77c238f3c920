package handler

import (
	"github.com/gin-gonic/gin"

	"pickup-market/internal/general/httpapi"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
)

// DiscoveryHTTPHandler serves the driver's location gate, discovery lists and cart.
type DiscoveryHTTPHandler struct {
	svc      ports.DiscoveryService
	location ports.LocationService
	cart     ports.CartService
	logger   *logger.Logger
}

// NewDiscoveryHTTPHandler wires the handler.
func NewDiscoveryHTTPHandler(
	svc ports.DiscoveryService,
	location ports.LocationService,
	cart ports.CartService,
	logger *logger.Logger,
) *DiscoveryHTTPHandler {
	return &DiscoveryHTTPHandler{svc: svc, location: location, cart: cart, logger: logger}
}

// RegisterRoutes mounts the driver endpoints. Discovery lists sit behind the location gate.
func (handler *DiscoveryHTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/location", handler.handleLocationStatus)
	rg.POST("/location/retry", handler.handleLocationRetry)
	rg.POST("/location/skip", handler.handleLocationSkip)

	discovery := rg.Group("/discovery", httpapi.RequireLocation(handler.location))
	discovery.GET("/items", handler.handleItems)
	discovery.GET("/trash", handler.handleTrash)

	rg.GET("/cart", handler.handleCartList)
	rg.DELETE("/cart", handler.handleCartClear)
	rg.PUT("/cart/:post_id", handler.handleCartAdd)
	rg.DELETE("/cart/:post_id", handler.handleCartRemove)
}
