package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	webcontext "github.com/citymind/urbanlink/internal/web/context"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// asProfile stands in for the auth middleware: ?as=<uuid> becomes the principal
func asProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := uuid.Parse(r.URL.Query().Get("as")); err == nil {
			r = r.WithContext(webcontext.SetPrincipal(r.Context(), &webcontext.Principal{ID: id}))
		}
		next.ServeHTTP(w, r)
	})
}

type fixture struct {
	hub    *Hub
	server *httptest.Server
	cancel context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(asProfile(NewHandler(hub, Config{})))
	f := &fixture{hub: hub, server: server, cancel: cancel}
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		server.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T, profile uuid.UUID) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?as=" + profile.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	welcome := readMessage(t, conn)
	require.Equal(t, TypeWelcome, welcome.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_PublishReachesOnlyThatProfile(t *testing.T) {
	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()

	tab1 := f.dial(t, alice)
	tab2 := f.dial(t, alice)
	other := f.dial(t, bob)
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 3 }, 5*time.Second, 10*time.Millisecond)

	msg, err := NewMessage(TypeNotification, map[string]string{"title": "Connection accepted"})
	require.NoError(t, err)
	require.True(t, f.hub.Publish(alice, msg))

	for _, conn := range []*websocket.Conn{tab1, tab2} {
		got := readMessage(t, conn)
		assert.Equal(t, TypeNotification, got.Type)
		assert.JSONEq(t, `{"title":"Connection accepted"}`, string(got.Data))
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)
}

func TestHub_PingGetsPongOnSameConnection(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	conn := f.dial(t, alice)
	sibling := f.dial(t, alice)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, TypePong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, TypeError, readMessage(t, conn).Type)

	require.NoError(t, sibling.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := sibling.ReadMessage()
	assert.Error(t, err)
}

func TestHub_ClientDisconnectIsReleased(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, uuid.New())
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	conn := f.dial(t, alice)
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	f.cancel()
	<-f.hub.Done()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	msg, _ := NewMessage(TypeNotification, nil)
	assert.False(t, f.hub.Publish(alice, msg))
}

func TestHandler_RequiresPrincipal(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	http.DefaultClient.CloseIdleConnections()
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.citymind.example", "*.partners.example"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.True(t, check(req))
	req.Header.Set("Origin", "https://app.citymind.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://acme.partners.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypeNotification, map[string]int{"n": 1})
	require.NoError(t, err)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"notification"`)

	_, err = NewMessage(TypeNotification, make(chan int))
	assert.Error(t, err)
}
