package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/cart"
	"pickup-market/internal/domain/geo"
	"pickup-market/internal/domain/posting"
	"pickup-market/internal/general/backend"
	"pickup-market/internal/general/httpapi"
	"pickup-market/internal/general/kvstore"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeDiscovery struct {
	res ports.DiscoveryResult
	err error
}

func (f fakeDiscovery) Items(context.Context) (ports.DiscoveryResult, error) { return f.res, f.err }
func (f fakeDiscovery) Trash(context.Context) (ports.DiscoveryResult, error) { return f.res, f.err }

type fakeLocation struct {
	st       ports.LocationStatus
	retryErr error
}

func (f *fakeLocation) Status() ports.LocationStatus { return f.st }
func (f *fakeLocation) Retry(context.Context) (ports.LocationStatus, error) {
	if f.retryErr == nil {
		f.st = ports.LocationStatus{Gate: ports.GateReady}
	}
	return f.st, f.retryErr
}
func (f *fakeLocation) ProceedWithout() ports.LocationStatus {
	f.st.Gate = ports.GateSkipped
	return f.st
}
func (f *fakeLocation) Latest() (geo.Position, bool) { return geo.Position{}, false }

func newRouter(disc ports.DiscoveryService, loc *fakeLocation) *gin.Engine {
	r := gin.New()
	r.Use(httpapi.RequestID())
	h := NewDiscoveryHTTPHandler(disc, loc, cart.New(kvstore.NewMemory(), "", nil), logger.NewWithWriter("test", io.Discard))
	h.RegisterRoutes(r.Group("/v1"))
	return r
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestDiscoveryGatedUntilFixOrSkip(t *testing.T) {
	km := 1.5
	disc := fakeDiscovery{res: ports.DiscoveryResult{Postings: []ports.RankedPosting{
		{Posting: posting.Posting{ID: 1}, DistanceKM: &km},
	}}}
	loc := &fakeLocation{st: ports.LocationStatus{Gate: ports.GateWaiting}}
	r := newRouter(disc, loc)

	if w := do(r, http.MethodGet, "/v1/discovery/trash"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("waiting gate: status %d", w.Code)
	}

	if w := do(r, http.MethodPost, "/v1/location/skip"); w.Code != http.StatusOK {
		t.Fatalf("skip: status %d", w.Code)
	}

	w := do(r, http.MethodGet, "/v1/discovery/trash")
	if w.Code != http.StatusOK {
		t.Fatalf("after skip: status %d", w.Code)
	}
	var res ports.DiscoveryResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Postings) != 1 || *res.Postings[0].DistanceKM != 1.5 {
		t.Fatalf("res = %+v", res)
	}
}

func TestLocationRetryFailureKeepsGate(t *testing.T) {
	loc := &fakeLocation{
		st:       ports.LocationStatus{Gate: ports.GateBlocked, Error: "denied"},
		retryErr: geo.ErrPermissionDenied,
	}
	r := newRouter(fakeDiscovery{}, loc)

	w := do(r, http.MethodPost, "/v1/location/retry")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", w.Code)
	}
	var body httpapi.ErrorBody
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Gate != ports.GateBlocked || !body.Retryable {
		t.Fatalf("body = %+v", body)
	}

	loc.retryErr = nil
	if w := do(r, http.MethodPost, "/v1/location/retry"); w.Code != http.StatusOK {
		t.Fatalf("retry ok: status %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/v1/discovery/items"); w.Code != http.StatusOK {
		t.Fatalf("ready gate: status %d", w.Code)
	}
}

func TestDiscoveryBackendFailureIsRetryable(t *testing.T) {
	loc := &fakeLocation{st: ports.LocationStatus{Gate: ports.GateReady}}
	r := newRouter(fakeDiscovery{err: &backend.APIError{Op: "postings.trash", StatusCode: 502}}, loc)

	w := do(r, http.MethodGet, "/v1/discovery/trash")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status %d", w.Code)
	}
}

func TestCartEndpoints(t *testing.T) {
	r := newRouter(fakeDiscovery{}, &fakeLocation{})

	do(r, http.MethodPut, "/v1/cart/7")
	do(r, http.MethodPut, "/v1/cart/3")
	w := do(r, http.MethodPut, "/v1/cart/7")

	var view ports.CartView
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if len(view.PostIDs) != 2 || view.PostIDs[0] != 3 || view.PostIDs[1] != 7 {
		t.Fatalf("cart = %v", view.PostIDs)
	}

	w = do(r, http.MethodDelete, "/v1/cart/3")
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if len(view.PostIDs) != 1 || view.PostIDs[0] != 7 {
		t.Fatalf("after remove = %v", view.PostIDs)
	}

	if w := do(r, http.MethodPut, "/v1/cart/zero"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", w.Code)
	}

	w = do(r, http.MethodDelete, "/v1/cart")
	view = ports.CartView{}
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if w.Code != http.StatusOK || view.PostIDs == nil || len(view.PostIDs) != 0 {
		t.Fatalf("clear: %d %v", w.Code, view.PostIDs)
	}
}
