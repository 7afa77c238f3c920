package handler

import (
	"github.com/gin-gonic/gin"

	"pickup-market/internal/domain/user"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
	"pickup-market/internal/software/reservation/service"
)

// ReservationHTTPHandler adapts the local API to the ReservationService.
type ReservationHTTPHandler struct {
	svc       ports.ReservationService
	logger    *logger.Logger
	role      user.Role
	refresher *service.ListRefresher
}

// NewReservationHTTPHandler wires the handler. refresher may be nil; when set, GET /contacts
// serves its snapshot and every applied action invalidates it.
func NewReservationHTTPHandler(
	svc ports.ReservationService,
	logger *logger.Logger,
	role user.Role,
	refresher *service.ListRefresher,
) *ReservationHTTPHandler {
	return &ReservationHTTPHandler{svc: svc, logger: logger, role: role, refresher: refresher}
}

// RegisterRoutes mounts the endpoints the handler's role may use.
func (handler *ReservationHTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/contacts", handler.handleList)
	rg.GET("/contacts/:id", handler.handleGet)
	rg.POST("/contacts/:id/cancel", handler.handleCancel)

	switch handler.role {
	case user.RoleDriver:
		rg.POST("/cart/commit", handler.handleCommit)
		rg.POST("/contacts/:id/complete", handler.handleMarkComplete)
	case user.RoleSeller:
		rg.POST("/contacts/:id/confirm", handler.handleConfirm)
		rg.POST("/contacts/:id/confirm-complete", handler.handleConfirmComplete)
	}
}
