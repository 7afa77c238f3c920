package geosource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pickup-market/internal/domain/geo"
)

// Web resolves the position through an HTTPS geolocation endpoint that accepts a
// Google-geolocation-style request. Watch polls it.
type Web struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// NewWeb returns a web backend; an empty endpoint makes it unavailable.
func NewWeb(endpoint, apiKey string) *Web {
	return &Web{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		now:        time.Now,
	}
}

func (w *Web) Name() string { return "web" }

func (w *Web) Available() bool { return w.endpoint != "" }

type webRequest struct {
	ConsiderIP   bool `json:"considerIp"`
	HighAccuracy bool `json:"highAccuracy,omitempty"`
}

type webReply struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
	Accuracy *float64 `json:"accuracy"`
}

// CurrentPosition performs one lookup.
func (w *Web) CurrentPosition(ctx context.Context, opts Options) (geo.Position, error) {
	if !w.Available() {
		return geo.Position{}, geo.ErrPositionUnavailable
	}

	u, err := url.Parse(w.endpoint)
	if err != nil {
		return geo.Position{}, errors.Join(geo.ErrPositionUnavailable, err)
	}
	if w.apiKey != "" {
		q := u.Query()
		q.Set("key", w.apiKey)
		u.RawQuery = q.Encode()
	}

	body, _ := json.Marshal(webRequest{ConsiderIP: true, HighAccuracy: opts.HighAccuracy})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return geo.Position{}, errors.Join(geo.ErrPositionUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return geo.Position{}, errors.Join(geo.ErrTimeout, err)
		}
		return geo.Position{}, errors.Join(geo.ErrPositionUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return geo.Position{}, fmt.Errorf("%w: web geolocation answered %d", geo.ErrPermissionDenied, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return geo.Position{}, fmt.Errorf("%w: web geolocation answered %d", geo.ErrPositionUnavailable, resp.StatusCode)
	}

	var reply webReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return geo.Position{}, errors.Join(geo.ErrPositionUnavailable, err)
	}

	pos := geo.Position{
		Lat:        reply.Location.Lat,
		Lng:        reply.Location.Lng,
		Accuracy:   reply.Accuracy,
		CapturedAt: w.now().UTC(),
	}
	if err := pos.Validate(); err != nil {
		return geo.Position{}, errors.Join(geo.ErrPositionUnavailable, err)
	}
	return pos, nil
}

// Watch polls CurrentPosition every PollInterval. The first error ends the watch.
func (w *Web) Watch(ctx context.Context, opts Options, onUpdate func(geo.Position), onError func(error)) (Subscription, error) {
	if !w.Available() {
		return nil, geo.ErrPositionUnavailable
	}
	opts = opts.withDefaults()

	pollCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(opts.PollInterval)
		defer ticker.Stop()

		for {
			readCtx, readCancel := context.WithTimeout(pollCtx, opts.TickTimeout)
			pos, err := w.CurrentPosition(readCtx, opts)
			readCancel()

			if pollCtx.Err() != nil {
				return
			}
			if err != nil {
				onError(err)
				return
			}
			onUpdate(pos)

			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return newSubscription(cancel), nil
}
