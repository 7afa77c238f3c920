package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pickup-market/internal/common/contextx"
	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/geo"
	"pickup-market/internal/domain/posting"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/general/metrics"
)

const maxErrorBody = 4 << 10

// Client talks to the marketplace REST backend with the user's bearer token.
type Client struct {
	base       *url.URL
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient validates baseURL and builds a client with the given per-request timeout.
func NewClient(baseURL, token string, timeout time.Duration, log *logger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", baseURL)
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("backend: token is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		base:       base,
		token:      strings.TrimPrefix(strings.TrimSpace(token), "Bearer "),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}, nil
}

// ----- postings -----

// NearbyItems lists item postings; near is sent as a hint when known.
func (c *Client) NearbyItems(ctx context.Context, near *geo.Point) ([]posting.Posting, error) {
	var q url.Values
	if near != nil {
		q = url.Values{}
		q.Set("nearby", strconv.FormatFloat(near.Lat, 'f', 6, 64)+","+strconv.FormatFloat(near.Lng, 'f', 6, 64))
	}

	var out []posting.Posting
	if err := c.do(ctx, "postings.nearby", http.MethodGet, "/postings", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TrashPostings lists open trash postings.
func (c *Client) TrashPostings(ctx context.Context) ([]posting.Posting, error) {
	var out []posting.Posting
	if err := c.do(ctx, "postings.trash", http.MethodGet, "/trash-postings", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ----- driver location -----

type locationBody struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UpdateDriverLocation stores the calling driver's position.
func (c *Client) UpdateDriverLocation(ctx context.Context, point geo.Point) error {
	return c.do(ctx, "driver_location.update", http.MethodPatch, "/driver-location", nil,
		locationBody{Lat: point.Lat, Lng: point.Lng}, nil)
}

type driverLocationReply struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DriverLocation reads another driver's last stored position.
func (c *Client) DriverLocation(ctx context.Context, driverID string) (geo.Position, error) {
	var reply driverLocationReply
	path := "/drivers/" + url.PathEscape(driverID) + "/location"
	if err := c.do(ctx, "driver_location.get", http.MethodGet, path, nil, nil, &reply); err != nil {
		return geo.Position{}, err
	}

	pos := geo.Position{Lat: reply.Lat, Lng: reply.Lng, CapturedAt: reply.UpdatedAt, Source: "backend"}
	if err := pos.Validate(); err != nil {
		return geo.Position{}, &APIError{Op: "driver_location.get", StatusCode: http.StatusOK, Err: err}
	}
	return pos, nil
}

// ----- contacts -----

type createContactsBody struct {
	PostIDs []int64 `json:"post_ids"`
}

// CreateContacts creates one pending contact per posting in a single all-or-nothing call.
func (c *Client) CreateContacts(ctx context.Context, postIDs []int64) ([]contact.Contact, error) {
	var out []contact.Contact
	if err := c.do(ctx, "contacts.create", http.MethodPost, "/contacts", nil, createContactsBody{PostIDs: postIDs}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListContacts lists the caller's contacts.
func (c *Client) ListContacts(ctx context.Context) ([]contact.Contact, error) {
	var out []contact.Contact
	if err := c.do(ctx, "contacts.list", http.MethodGet, "/contacts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ContactsForPost lists every contact on a posting, the caller's and its siblings.
func (c *Client) ContactsForPost(ctx context.Context, postID int64) ([]contact.Contact, error) {
	q := url.Values{}
	q.Set("post_id", strconv.FormatInt(postID, 10))

	var out []contact.Contact
	if err := c.do(ctx, "contacts.for_post", http.MethodGet, "/contacts", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContact reads one contact with its denormalized posting.
func (c *Client) GetContact(ctx context.Context, id int64) (contact.Contact, error) {
	var out contact.Contact
	if err := c.do(ctx, "contacts.get", http.MethodGet, contactPath(id), nil, nil, &out); err != nil {
		return contact.Contact{}, err
	}
	return out, nil
}

type statusBody struct {
	Status contact.Status `json:"status"`
}

// UpdateContactStatus moves a contact to status.
func (c *Client) UpdateContactStatus(ctx context.Context, id int64, status contact.Status) error {
	return c.do(ctx, "contacts.status", http.MethodPatch, contactPath(id)+"/status", nil, statusBody{Status: status}, nil)
}

// DeleteContact removes a contact that was never committed to.
func (c *Client) DeleteContact(ctx context.Context, id int64) error {
	return c.do(ctx, "contacts.delete", http.MethodDelete, contactPath(id), nil, nil, nil)
}

type cancelBody struct {
	Reason string `json:"reason"`
}

// RequestCancel cancels a committed contact and keeps the reason on record.
func (c *Client) RequestCancel(ctx context.Context, id int64, reason string) error {
	return c.do(ctx, "contacts.cancel", http.MethodPost, contactPath(id)+"/cancel", nil, cancelBody{Reason: reason}, nil)
}

func contactPath(id int64) string {
	return "/contacts/" + strconv.FormatInt(id, 10)
}

// ----- transport -----

// do performs one JSON round trip. out may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	start := time.Now()

	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &APIError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := contextx.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.TrackBackend(op, 0, time.Since(start))
		apiErr := &APIError{Op: op, Err: err}
		c.logFailure(ctx, op, method, path, apiErr)
		return apiErr
	}
	defer resp.Body.Close()

	metrics.TrackBackend(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
		c.logFailure(ctx, op, method, path, apiErr)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from an error body.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func (c *Client) logFailure(ctx context.Context, op, method, path string, apiErr *APIError) {
	if c.logger == nil {
		return
	}
	c.logger.Error(ctx, "backend_request_failed", "Marketplace backend call failed", apiErr, map[string]any{
		"operation": op,
		"method":    method,
		"path":      path,
		"status":    apiErr.StatusCode,
		"retryable": apiErr.Retryable(),
	})
}
