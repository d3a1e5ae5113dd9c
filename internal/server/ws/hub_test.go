package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lottobet/internal/domain"
	"github.com/alanyoungcy/lottobet/internal/server/middleware"
	"github.com/alanyoungcy/lottobet/internal/service"
)

type memBus struct {
	mu   sync.Mutex
	subs map[string]chan []byte
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	ch := b.subs[channel]
	b.mu.Unlock()
	if ch != nil {
		ch <- payload
	}
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	in := make(chan []byte, 8)
	out := make(chan []byte)
	b.mu.Lock()
	b.subs[channel] = in
	b.mu.Unlock()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-in:
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *memBus) subscribed(channel string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[channel] != nil
}

func (b *memBus) StreamAppend(context.Context, string, []byte) error { return nil }

type viewer struct{}

func (viewer) View(_ context.Context, m domain.Member, id string) (service.SessionView, error) {
	if m.Owner != "owner-1" || id != "s-1" {
		return service.SessionView{}, domain.ErrNotFound
	}
	return service.SessionView{ID: id, State: domain.SubmitIdle}, nil
}

func startHub(t *testing.T, owner string) (*Hub, *memBus, *httptest.Server) {
	t.Helper()
	bus := &memBus{subs: map[string]chan []byte{}}
	hub := NewHub(bus, viewer{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(middleware.WithMember(r.Context(), domain.Member{Token: "t", Owner: owner}))
		hub.HandleWS(w, r)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, bus, srv
}

func wsURL(srv *httptest.Server, session string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=" + session
}

func TestHubStreamsSessionEvents(t *testing.T) {
	hub, bus, srv := startHub(t, "owner-1")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "s-1"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap struct {
		Type    string `json:"type"`
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, "s-1", snap.Session.ID)

	require.Eventually(t, func() bool { return bus.subscribed(domain.SessionChannel("s-1")) }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	ev, err := json.Marshal(domain.SessionEvent{Type: domain.EventLinesAdded, SessionID: "s-1"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), domain.SessionChannel("s-1"), ev))

	var got struct {
		Type  string              `json:"type"`
		Event domain.SessionEvent `json:"event"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "event", got.Type)
	assert.Equal(t, domain.EventLinesAdded, got.Event.Type)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubRejectsForeignSession(t *testing.T) {
	_, _, srv := startHub(t, "owner-2")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "s-1"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"https://app.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://app.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://other.example")
	assert.False(t, check(req))
}
