package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/general/httpapi"
	"pickup-market/internal/ports"
)

// ----- Handler: GET /cart -----

func (handler *DiscoveryHTTPHandler) handleCartList(c *gin.Context) {
	handler.respondCart(c)
}

// ----- Handler: DELETE /cart -----

func (handler *DiscoveryHTTPHandler) handleCartClear(c *gin.Context) {
	if err := handler.cart.Clear(httpapi.Ctx(c)); err != nil {
		httpapi.Fail(c, handler.logger, "cart_clear_failed", err)
		return
	}
	handler.respondCart(c)
}

// ----- Handler: PUT /cart/:post_id -----

func (handler *DiscoveryHTTPHandler) handleCartAdd(c *gin.Context) {
	postID, err := httpapi.ParseID(c, "post_id")
	if err != nil {
		httpapi.Fail(c, handler.logger, "cart_add_failed", err)
		return
	}
	if err := handler.cart.Add(httpapi.Ctx(c), postID); err != nil {
		httpapi.Fail(c, handler.logger, "cart_add_failed", err)
		return
	}
	handler.respondCart(c)
}

// ----- Handler: DELETE /cart/:post_id -----

func (handler *DiscoveryHTTPHandler) handleCartRemove(c *gin.Context) {
	postID, err := httpapi.ParseID(c, "post_id")
	if err != nil {
		httpapi.Fail(c, handler.logger, "cart_remove_failed", err)
		return
	}
	if err := handler.cart.Remove(httpapi.Ctx(c), postID); err != nil {
		httpapi.Fail(c, handler.logger, "cart_remove_failed", err)
		return
	}
	handler.respondCart(c)
}

func (handler *DiscoveryHTTPHandler) respondCart(c *gin.Context) {
	ids, err := handler.cart.List(httpapi.Ctx(c))
	if err != nil {
		httpapi.Fail(c, handler.logger, "cart_read_failed", err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, ports.CartView{PostIDs: ids})
}
