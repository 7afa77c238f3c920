package service

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/posting"
	"pickup-market/internal/general/backend"
)

// fakeBackend keeps contacts server-side and enforces the status machine like the real API.
type fakeBackend struct {
	mu       sync.Mutex
	nextID   int64
	contacts map[int64]contact.Contact
	calls    []string

	failCreate error
	conflictOn int64         // next status update on this contact answers 409
	gate       chan struct{} // when set, status updates wait on it
	entered    chan struct{}
	forPost    map[int64]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextID: 1, contacts: map[int64]contact.Contact{}, forPost: map[int64]int{}}
}

func (f *fakeBackend) seed(postID int64, driver string, status contact.Status) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.contacts[id] = contact.Contact{ID: id, PostID: postID, SellerID: "seller-1", DriverID: driver, Status: status}
	return id
}

func (f *fakeBackend) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) withPost(c contact.Contact) contact.Contact {
	var statuses []string
	for _, other := range f.contacts {
		if other.PostID == c.PostID {
			statuses = append(statuses, string(other.Status))
		}
	}
	post := posting.Posting{ID: c.PostID, Kind: posting.KindTrash, SellerID: "seller-1", Status: posting.Rollup(statuses...)}
	c.Post = &post
	return c
}

func (f *fakeBackend) CreateContacts(_ context.Context, postIDs []int64) ([]contact.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create")
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	out := make([]contact.Contact, 0, len(postIDs))
	for _, postID := range postIDs {
		c := contact.Contact{ID: f.nextID, PostID: postID, SellerID: "seller-1", DriverID: "driver-a", Status: contact.StatusPending}
		f.nextID++
		f.contacts[c.ID] = c
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeBackend) ListContacts(context.Context) ([]contact.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	return f.sorted(func(contact.Contact) bool { return true }), nil
}

func (f *fakeBackend) ContactsForPost(_ context.Context, postID int64) ([]contact.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("for_post")
	f.forPost[postID]++
	return f.sorted(func(c contact.Contact) bool { return c.PostID == postID }), nil
}

func (f *fakeBackend) sorted(keep func(contact.Contact) bool) []contact.Contact {
	var out []contact.Contact
	for _, c := range f.contacts {
		if keep(c) {
			out = append(out, f.withPost(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeBackend) GetContact(_ context.Context, id int64) (contact.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get")
	c, ok := f.contacts[id]
	if !ok {
		return contact.Contact{}, &backend.APIError{Op: "contacts.get", StatusCode: http.StatusNotFound}
	}
	return f.withPost(c), nil
}

func (f *fakeBackend) UpdateContactStatus(_ context.Context, id int64, status contact.Status) error {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("status:" + string(status))
	if f.conflictOn == id {
		f.conflictOn = 0
		return &backend.APIError{Op: "contacts.status", StatusCode: http.StatusConflict}
	}
	c, ok := f.contacts[id]
	if !ok {
		return &backend.APIError{Op: "contacts.status", StatusCode: http.StatusNotFound}
	}
	if !c.Status.CanTransitionTo(status) {
		return &backend.APIError{Op: "contacts.status", StatusCode: http.StatusConflict}
	}
	c.Status = status
	f.contacts[id] = c
	return nil
}

func (f *fakeBackend) DeleteContact(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete")
	delete(f.contacts, id)
	return nil
}

func (f *fakeBackend) RequestCancel(_ context.Context, id int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cancel")
	c := f.contacts[id]
	c.Status = contact.StatusCancelled
	c.CancelReason = &reason
	f.contacts[id] = c
	return nil
}
