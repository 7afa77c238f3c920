package geosource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"pickup-market/internal/domain/geo"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	nativeWriteTimeout = 5 * time.Second
	nativeReadLimit    = 64 << 10
)

// Frame types spoken with the device location bridge.
const (
	framePermissionRequest = "permission_request"
	framePermission        = "permission"
	frameGetPosition       = "get_position"
	frameWatch             = "watch"
	frameClearWatch        = "clear_watch"
	framePosition          = "position"
	frameError             = "error"
)

// nativeFrame is the single envelope for both directions.
type nativeFrame struct {
	Type         string   `json:"type"`
	ID           string   `json:"id,omitempty"`
	HighAccuracy bool     `json:"high_accuracy,omitempty"`
	MaximumAgeMS int64    `json:"maximum_age_ms,omitempty"`
	TimeoutMS    int64    `json:"timeout_ms,omitempty"`
	State        string   `json:"state,omitempty"` // permission reply: granted | denied
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	Timestamp    int64    `json:"timestamp,omitempty"` // unix millis
	Code         string   `json:"code,omitempty"`      // permission_denied | position_unavailable | timeout
	Message      string   `json:"message,omitempty"`
}

// Native reads the platform location service through a local WebSocket bridge exposed
// by the device shell. Every explicit request asks for permission first.
type Native struct {
	url    string
	dialer *websocket.Dialer
}

// NewNative returns a native backend; an empty url makes it unavailable.
func NewNative(url string) *Native {
	return &Native{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

func (n *Native) Name() string { return "native" }

func (n *Native) Available() bool { return n.url != "" }

// CurrentPosition opens a connection, requests permission and reads one position.
func (n *Native) CurrentPosition(ctx context.Context, opts Options) (geo.Position, error) {
	conn, err := n.open(ctx)
	if err != nil {
		return geo.Position{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	if err := requestPermission(conn); err != nil {
		return geo.Position{}, err
	}

	id := uuid.NewString()
	if err := writeFrame(conn, nativeFrame{
		Type:         frameGetPosition,
		ID:           id,
		HighAccuracy: opts.HighAccuracy,
		MaximumAgeMS: opts.MaximumAge.Milliseconds(),
		TimeoutMS:    opts.Timeout.Milliseconds(),
	}); err != nil {
		return geo.Position{}, err
	}

	for {
		frame, err := readFrame(conn)
		if err != nil {
			return geo.Position{}, err
		}
		if frame.ID != "" && frame.ID != id {
			continue
		}
		switch frame.Type {
		case framePosition:
			return frame.position()
		case frameError:
			return geo.Position{}, frame.err()
		}
	}
}

// Watch keeps one connection open and streams position frames until Clear.
func (n *Native) Watch(ctx context.Context, opts Options, onUpdate func(geo.Position), onError func(error)) (Subscription, error) {
	openCtx, cancel := context.WithTimeout(ctx, opts.withDefaults().TickTimeout)
	defer cancel()

	conn, err := n.open(openCtx)
	if err != nil {
		return nil, err
	}

	if deadline, ok := openCtx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	if err := requestPermission(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	id := uuid.NewString()
	if err := writeFrame(conn, nativeFrame{Type: frameWatch, ID: id, HighAccuracy: opts.HighAccuracy}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	// the chain watchdog owns tick timeouts from here on
	_ = conn.SetReadDeadline(time.Time{})

	var (
		mu      sync.Mutex
		cleared bool
	)
	isCleared := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return cleared
	}

	go func() {
		defer conn.Close()
		for {
			frame, err := readFrame(conn)
			if isCleared() {
				return
			}
			if err != nil {
				onError(err)
				return
			}
			if frame.ID != "" && frame.ID != id {
				continue
			}

			switch frame.Type {
			case framePosition:
				pos, err := frame.position()
				if err != nil {
					onError(err)
					return
				}
				onUpdate(pos)
			case frameError:
				onError(frame.err())
				return
			}
		}
	}()

	return newSubscription(func() {
		mu.Lock()
		cleared = true
		mu.Unlock()
		go func() {
			_ = writeFrame(conn, nativeFrame{Type: frameClearWatch, ID: id})
			_ = conn.Close()
		}()
	}), nil
}

func (n *Native) open(ctx context.Context) (*websocket.Conn, error) {
	if !n.Available() {
		return nil, geo.ErrPositionUnavailable
	}
	conn, _, err := n.dialer.DialContext(ctx, n.url, nil)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	conn.SetReadLimit(nativeReadLimit)
	return conn, nil
}

// requestPermission asks the bridge for location permission and waits for the answer.
func requestPermission(conn *websocket.Conn) error {
	id := uuid.NewString()
	if err := writeFrame(conn, nativeFrame{Type: framePermissionRequest, ID: id}); err != nil {
		return err
	}
	for {
		frame, err := readFrame(conn)
		if err != nil {
			return err
		}
		if frame.ID != id {
			continue
		}
		switch frame.Type {
		case framePermission:
			if frame.State == "granted" {
				return nil
			}
			return fmt.Errorf("%w: bridge reported %q", geo.ErrPermissionDenied, frame.State)
		case frameError:
			return frame.err()
		}
	}
}

func writeFrame(conn *websocket.Conn, frame nativeFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(nativeWriteTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		return errors.Join(geo.ErrPositionUnavailable, err)
	}
	return nil
}

func readFrame(conn *websocket.Conn) (nativeFrame, error) {
	var frame nativeFrame
	_, payload, err := conn.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return frame, errors.Join(geo.ErrTimeout, err)
		}
		return frame, errors.Join(geo.ErrPositionUnavailable, err)
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		return frame, errors.Join(geo.ErrPositionUnavailable, fmt.Errorf("bad bridge frame: %w", err))
	}
	return frame, nil
}

func (f nativeFrame) position() (geo.Position, error) {
	if f.Lat == nil || f.Lng == nil {
		return geo.Position{}, fmt.Errorf("%w: position frame without coordinates", geo.ErrPositionUnavailable)
	}
	captured := time.Now().UTC()
	if f.Timestamp > 0 {
		captured = time.UnixMilli(f.Timestamp).UTC()
	}
	pos := geo.Position{Lat: *f.Lat, Lng: *f.Lng, Accuracy: f.Accuracy, CapturedAt: captured}
	if err := pos.Validate(); err != nil {
		return geo.Position{}, errors.Join(geo.ErrPositionUnavailable, err)
	}
	return pos, nil
}

func (f nativeFrame) err() error {
	var kind error
	switch f.Code {
	case "permission_denied":
		kind = geo.ErrPermissionDenied
	case "timeout":
		kind = geo.ErrTimeout
	default:
		kind = geo.ErrPositionUnavailable
	}
	if f.Message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, f.Message)
}

func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Join(geo.ErrTimeout, err)
	}
	return errors.Join(geo.ErrPositionUnavailable, err)
}
