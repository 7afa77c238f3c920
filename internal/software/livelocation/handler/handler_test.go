package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/geo"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
)

type fakeLive struct {
	view ports.DriverLocationView
	err  error
}

func (f fakeLive) DriverLocation(context.Context, int64) (ports.DriverLocationView, error) {
	return f.view, f.err
}

func serve(svc ports.LiveLocationService, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewLiveLocationHTTPHandler(svc, logger.NewWithWriter("test", io.Discard)).RegisterRoutes(r.Group("/v1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestDriverLocationEndpoint(t *testing.T) {
	view := ports.DriverLocationView{ContactID: 3, DriverID: "d", Position: &geo.Position{Lat: 1, Lng: 2}, Live: true}
	if w := serve(fakeLive{view: view}, "/v1/contacts/3/driver-location"); w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}

	notShared := fakeLive{err: fmt.Errorf("%w: pending", contact.ErrConflictingState)}
	if w := serve(notShared, "/v1/contacts/3/driver-location"); w.Code != http.StatusConflict {
		t.Fatalf("not shared: %d", w.Code)
	}
}
