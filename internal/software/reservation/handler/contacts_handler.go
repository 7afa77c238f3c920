package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/domain/contact"
	"pickup-market/internal/general/httpapi"
	"pickup-market/internal/ports"
)

// conflictBody carries the fresh server view along with a 409 so the client can redraw.
type conflictBody struct {
	httpapi.ErrorBody
	Contact *ports.ContactView `json:"contact,omitempty"`
}

type contactListResponse struct {
	Contacts  []ports.ContactView `json:"contacts"`
	FetchedAt time.Time           `json:"fetched_at"`
	Cached    bool                `json:"cached"`
}

// ----- Handler: GET /contacts -----

func (handler *ReservationHTTPHandler) handleList(c *gin.Context) {
	if handler.refresher != nil && c.Query("fresh") == "" {
		if views, at, ok := handler.refresher.Snapshot(); ok {
			c.JSON(http.StatusOK, contactListResponse{Contacts: views, FetchedAt: at, Cached: true})
			return
		}
	}

	ctx, cancel := context.WithTimeout(httpapi.Ctx(c), 15*time.Second)
	defer cancel()

	views, err := handler.svc.List(ctx)
	if err != nil {
		httpapi.Fail(c, handler.logger, "contacts_list_failed", err)
		return
	}
	if views == nil {
		views = []ports.ContactView{}
	}
	c.JSON(http.StatusOK, contactListResponse{Contacts: views, FetchedAt: time.Now().UTC()})
}

// ----- Handler: GET /contacts/:id -----

func (handler *ReservationHTTPHandler) handleGet(c *gin.Context) {
	id, err := httpapi.ParseID(c, "id")
	if err != nil {
		httpapi.Fail(c, handler.logger, "contact_get_failed", err)
		return
	}

	ctx, cancel := context.WithTimeout(httpapi.Ctx(c), 10*time.Second)
	defer cancel()

	view, err := handler.svc.Get(ctx, id)
	if err != nil {
		httpapi.Fail(c, handler.logger, "contact_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ----- Handler: POST /contacts/:id/confirm -----

func (handler *ReservationHTTPHandler) handleConfirm(c *gin.Context) {
	handler.runAction(c, "contact_confirm", handler.svc.Confirm)
}

// ----- Handler: POST /contacts/:id/complete -----

func (handler *ReservationHTTPHandler) handleMarkComplete(c *gin.Context) {
	handler.runAction(c, "contact_mark_complete", handler.svc.MarkComplete)
}

// ----- Handler: POST /contacts/:id/confirm-complete -----

func (handler *ReservationHTTPHandler) handleConfirmComplete(c *gin.Context) {
	handler.runAction(c, "contact_confirm_complete", handler.svc.ConfirmComplete)
}

func (handler *ReservationHTTPHandler) runAction(c *gin.Context, action string, run func(context.Context, int64) (ports.ContactView, error)) {
	id, err := httpapi.ParseID(c, "id")
	if err != nil {
		httpapi.Fail(c, handler.logger, action+"_failed", err)
		return
	}
	view, err := run(httpapi.Ctx(c), id)
	handler.respondAction(c, action, view, err)
}

func (handler *ReservationHTTPHandler) respondAction(c *gin.Context, action string, view ports.ContactView, err error) {
	if handler.refresher != nil {
		handler.refresher.Invalidate()
	}
	if err == nil {
		c.JSON(http.StatusOK, view)
		return
	}

	if errors.Is(err, contact.ErrConflictingState) && view.Contact.ID != 0 {
		status, body := httpapi.Classify(err)
		handler.logger.Info(httpapi.Ctx(c), action+"_conflict", "Contact moved on before this action", map[string]any{
			"contact_id": view.Contact.ID,
			"effective":  string(view.Effective),
		})
		c.AbortWithStatusJSON(status, conflictBody{ErrorBody: body, Contact: &view})
		return
	}
	httpapi.Fail(c, handler.logger, action+"_failed", err)
}
