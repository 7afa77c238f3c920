package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/cart"
	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/user"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeReservations struct {
	view       ports.ContactView
	err        error
	lastReason string
	lastID     int64
	created    []contact.Contact
}

func (f *fakeReservations) Commit(context.Context) ([]contact.Contact, error) {
	return f.created, f.err
}
func (f *fakeReservations) Get(_ context.Context, id int64) (ports.ContactView, error) {
	f.lastID = id
	return f.view, f.err
}
func (f *fakeReservations) List(context.Context) ([]ports.ContactView, error) {
	return []ports.ContactView{f.view}, f.err
}
func (f *fakeReservations) Confirm(_ context.Context, id int64) (ports.ContactView, error) {
	f.lastID = id
	return f.view, f.err
}
func (f *fakeReservations) MarkComplete(_ context.Context, id int64) (ports.ContactView, error) {
	f.lastID = id
	return f.view, f.err
}
func (f *fakeReservations) ConfirmComplete(_ context.Context, id int64) (ports.ContactView, error) {
	f.lastID = id
	return f.view, f.err
}
func (f *fakeReservations) Cancel(_ context.Context, id int64, reason string) (ports.ContactView, error) {
	f.lastID, f.lastReason = id, reason
	return f.view, f.err
}

func newRouter(svc ports.ReservationService, role user.Role) *gin.Engine {
	r := gin.New()
	NewReservationHTTPHandler(svc, logger.NewWithWriter("test", io.Discard), role, nil).RegisterRoutes(r.Group("/v1"))
	return r
}

func send(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRoutesFollowRole(t *testing.T) {
	svc := &fakeReservations{view: ports.ContactView{Contact: contact.Contact{ID: 5}}}
	driver := newRouter(svc, user.RoleDriver)
	seller := newRouter(svc, user.RoleSeller)

	if w := send(driver, http.MethodPost, "/v1/contacts/5/confirm", ""); w.Code != http.StatusNotFound {
		t.Fatalf("driver confirm route: %d", w.Code)
	}
	if w := send(seller, http.MethodPost, "/v1/contacts/5/confirm", ""); w.Code != http.StatusOK || svc.lastID != 5 {
		t.Fatalf("seller confirm: %d id %d", w.Code, svc.lastID)
	}
	if w := send(seller, http.MethodPost, "/v1/cart/commit", ""); w.Code != http.StatusNotFound {
		t.Fatalf("seller commit route: %d", w.Code)
	}
	if w := send(driver, http.MethodPost, "/v1/contacts/5/complete", ""); w.Code != http.StatusOK {
		t.Fatalf("driver complete: %d", w.Code)
	}
}

func TestConflictCarriesFreshView(t *testing.T) {
	svc := &fakeReservations{
		view: ports.ContactView{Contact: contact.Contact{ID: 5}, Effective: contact.EffectiveSuperseded},
		err:  fmt.Errorf("confirm: %w", contact.ErrConflictingState),
	}
	w := send(newRouter(svc, user.RoleSeller), http.MethodPost, "/v1/contacts/5/confirm", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d", w.Code)
	}
	var body struct {
		Code          string             `json:"code"`
		Informational bool               `json:"informational"`
		Contact       *ports.ContactView `json:"contact"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "conflicting_state" || !body.Informational || body.Contact == nil || body.Contact.Effective != contact.EffectiveSuperseded {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestCancelBody(t *testing.T) {
	svc := &fakeReservations{view: ports.ContactView{Contact: contact.Contact{ID: 5}}}
	r := newRouter(svc, user.RoleDriver)

	if w := send(r, http.MethodPost, "/v1/contacts/5/cancel", `{"reason":"flat tire"}`); w.Code != http.StatusOK || svc.lastReason != "flat tire" {
		t.Fatalf("with reason: %d %q", w.Code, svc.lastReason)
	}
	if w := send(r, http.MethodPost, "/v1/contacts/5/cancel", ""); w.Code != http.StatusOK || svc.lastReason != "" {
		t.Fatalf("empty body: %d %q", w.Code, svc.lastReason)
	}
	if w := send(r, http.MethodPost, "/v1/contacts/5/cancel", `{"why":"x"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: %d", w.Code)
	}

	svc.err = contact.ErrReasonRequired
	if w := send(r, http.MethodPost, "/v1/contacts/5/cancel", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("reason required: %d", w.Code)
	}
}

func TestCommitResponses(t *testing.T) {
	svc := &fakeReservations{created: []contact.Contact{{ID: 1}, {ID: 2}}}
	r := newRouter(svc, user.RoleDriver)

	w := send(r, http.MethodPost, "/v1/cart/commit", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d", w.Code)
	}

	svc.err = fmt.Errorf("commit: %w", cart.ErrEmptyCart)
	if w := send(r, http.MethodPost, "/v1/cart/commit", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("empty cart: %d", w.Code)
	}
	svc.err = cart.ErrCommitInFlight
	if w := send(r, http.MethodPost, "/v1/cart/commit", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("in flight: %d", w.Code)
	}
}

func TestListAndGet(t *testing.T) {
	svc := &fakeReservations{view: ports.ContactView{Contact: contact.Contact{ID: 9}}}
	r := newRouter(svc, user.RoleSeller)

	w := send(r, http.MethodGet, "/v1/contacts", "")
	var list contactListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if w.Code != http.StatusOK || len(list.Contacts) != 1 || list.Cached {
		t.Fatalf("list: %d %+v", w.Code, list)
	}

	if w := send(r, http.MethodGet, "/v1/contacts/9", ""); w.Code != http.StatusOK || svc.lastID != 9 {
		t.Fatalf("get: %d", w.Code)
	}
	if w := send(r, http.MethodGet, "/v1/contacts/-1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", w.Code)
	}
}
