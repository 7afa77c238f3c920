package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/general/httpapi"
)

// --- Request DTO (HTTP boundary) ---

type cancelContactRequest struct {
	Reason string `json:"reason"`
}

// ----- Handler: POST /contacts/:id/cancel -----

func (handler *ReservationHTTPHandler) handleCancel(c *gin.Context) {
	id, err := httpapi.ParseID(c, "id")
	if err != nil {
		httpapi.Fail(c, handler.logger, "contact_cancel_failed", err)
		return
	}

	// limit the body size
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 16<<10)

	// an empty body is a cancel without reason
	var req cancelContactRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpapi.Fail(c, handler.logger, "contact_cancel_failed", errors.Join(httpapi.ErrBadRequest, err))
		return
	}

	view, err := handler.svc.Cancel(httpapi.Ctx(c), id, req.Reason)
	handler.respondAction(c, "contact_cancel", view, err)
}
