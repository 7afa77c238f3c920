package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/domain/contact"
	"pickup-market/internal/general/httpapi"
)

type commitResponse struct {
	Contacts []contact.Contact `json:"contacts"`
}

// ----- Handler: POST /cart/commit -----

func (handler *ReservationHTTPHandler) handleCommit(c *gin.Context) {
	created, err := handler.svc.Commit(httpapi.Ctx(c))
	if err != nil {
		httpapi.Fail(c, handler.logger, "cart_commit_failed", err)
		return
	}
	if handler.refresher != nil {
		handler.refresher.Invalidate()
	}
	c.JSON(http.StatusCreated, commitResponse{Contacts: created})
}
