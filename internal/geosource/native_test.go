package geosource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pickup-market/internal/domain/geo"

	"github.com/gorilla/websocket"
)

// fakeBridge plays the device shell side of the location bridge.
type fakeBridge struct {
	permission string // reply state
	errCode    string // when set, get_position answers with an error frame
	watchFixes int    // position frames to stream per watch

	mu       sync.Mutex
	received []string
}

func (b *fakeBridge) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.received...)
}

func (b *fakeBridge) serve(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var in nativeFrame
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			b.mu.Lock()
			b.received = append(b.received, in.Type)
			b.mu.Unlock()

			lat, lng := 13.7, 100.5
			switch in.Type {
			case framePermissionRequest:
				_ = conn.WriteJSON(nativeFrame{Type: framePermission, ID: in.ID, State: b.permission})
			case frameGetPosition:
				if b.errCode != "" {
					_ = conn.WriteJSON(nativeFrame{Type: frameError, ID: in.ID, Code: b.errCode, Message: "gps off"})
					continue
				}
				_ = conn.WriteJSON(nativeFrame{Type: framePosition, ID: in.ID, Lat: &lat, Lng: &lng, Timestamp: time.Now().UnixMilli()})
			case frameWatch:
				for i := 0; i < b.watchFixes; i++ {
					l := lat + float64(i)/100
					_ = conn.WriteJSON(nativeFrame{Type: framePosition, ID: in.ID, Lat: &l, Lng: &lng, Timestamp: time.Now().UnixMilli()})
				}
			case frameClearWatch:
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNativeAsksPermissionBeforeReading(t *testing.T) {
	bridge := &fakeBridge{permission: "granted"}
	native := NewNative(bridge.serve(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pos, err := native.CurrentPosition(ctx, Options{HighAccuracy: true})
	if err != nil {
		t.Fatalf("current position: %v", err)
	}
	if pos.Lat != 13.7 || pos.Lng != 100.5 {
		t.Fatalf("position = %+v", pos)
	}

	seen := bridge.seen()
	if len(seen) < 2 || seen[0] != framePermissionRequest || seen[1] != frameGetPosition {
		t.Fatalf("frames = %v", seen)
	}
}

func TestNativePermissionDenied(t *testing.T) {
	bridge := &fakeBridge{permission: "denied"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewNative(bridge.serve(t)).CurrentPosition(ctx, Options{})
	if !errors.Is(err, geo.ErrPermissionDenied) {
		t.Fatalf("err = %v", err)
	}
	for _, frame := range bridge.seen() {
		if frame == frameGetPosition {
			t.Fatal("position requested without permission")
		}
	}
}

func TestNativeErrorFrameIsNormalized(t *testing.T) {
	bridge := &fakeBridge{permission: "granted", errCode: "position_unavailable"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewNative(bridge.serve(t)).CurrentPosition(ctx, Options{}); !errors.Is(err, geo.ErrPositionUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestNativeUnreachableBridge(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewNative("ws://127.0.0.1:1/location").CurrentPosition(ctx, Options{})
	if !geo.UserActionable(err) {
		t.Fatalf("err = %v", err)
	}
	if NewNative("").Available() {
		t.Fatal("empty url should be unavailable")
	}
}

func TestNativeWatchStreamsUntilClear(t *testing.T) {
	bridge := &fakeBridge{permission: "granted", watchFixes: 3}
	rec := &recorder{}

	sub, err := NewNative(bridge.serve(t)).Watch(context.Background(), Options{TickTimeout: 2 * time.Second}, rec.update, rec.fail)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	waitFor(t, "three fixes", func() bool {
		updates, _ := rec.snapshot()
		return len(updates) == 3
	})
	sub.Clear()
	sub.Clear()

	time.Sleep(20 * time.Millisecond)
	if _, errs := rec.snapshot(); len(errs) != 0 {
		t.Fatalf("errors after clear: %v", errs)
	}
}
