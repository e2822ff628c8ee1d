package signal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	"github.com/timbre-app/timbre/internal/push"
)

type recordingSender struct {
	payloads chan map[string]string
}

func (r *recordingSender) Send(_ context.Context, _ json.RawMessage, payload []byte) (int, error) {
	decoded := map[string]string{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return 0, err
	}
	r.payloads <- decoded
	return http.StatusCreated, nil
}

type testServer struct {
	server *httptest.Server
	push   *push.Service
	sender *recordingSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sender := &recordingSender{payloads: make(chan map[string]string, 4)}
	pushService := push.NewService(push.NewServiceParams{
		Logger: logger,
		Sender: sender,
		Config: push.Config{
			PublicKey:  "test-public",
			PrivateKey: "test-private",
			Subject:    "mailto:test@localhost",
		},
	})

	ctrl := NewSignalController(newSignalController_Params{
		Logger:  logger,
		Signals: NewService(NewServiceParams{Logger: logger}),
		Push:    pushService,
	})

	router := echo.New()
	if err := ctrl.Resolve(router); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{server: server, push: pushService, sender: sender}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, body string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(body)); err != nil {
		t.Fatal(err)
	}
}

func expectFrame(t *testing.T, conn *websocket.Conn, kind Kind) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("waiting for %q: %v", kind, err)
	}
	frame := map[string]any{}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatal(err)
	}
	if frame["type"] != string(kind) {
		t.Fatalf("expected %q, got %v", kind, frame)
	}
	return frame
}

func (ts *testServer) roomCount(t *testing.T) int {
	t.Helper()
	resp, err := http.Get(ts.server.URL + "/api/rooms")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body RoomListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return len(body.Rooms)
}

// Full call lifecycle over real sockets: join, offer with push wake-up,
// hangup, disconnect, room eviction.
func TestCallScenario(t *testing.T) {
	ts := newTestServer(t)

	owner := ts.dial(t)
	sendFrame(t, owner, `{"type":"join","roomId":"R1","role":"owner"}`)
	expectFrame(t, owner, KindJoined)

	caller := ts.dial(t)
	sendFrame(t, caller, `{"type":"join","roomId":"R1","role":"caller"}`)
	expectFrame(t, caller, KindJoined)

	joined := expectFrame(t, owner, KindPeerJoined)
	if joined["role"] != "caller" {
		t.Fatalf("peer-joined carries the wrong role: %v", joined)
	}

	ts.push.Subscribe("R1", json.RawMessage(`{"endpoint":"https://push/owner"}`))

	sendFrame(t, caller, `{"type":"offer","offer":{"sdp":"x"}}`)
	offer := expectFrame(t, owner, KindOffer)
	if sdp := offer["offer"].(map[string]any)["sdp"]; sdp != "x" {
		t.Fatalf("offer payload mutated: %v", offer)
	}
	if offer["_fromRole"] != "caller" {
		t.Fatalf("offer missing sender tag: %v", offer)
	}

	select {
	case payload := <-ts.sender.payloads:
		if !strings.Contains(payload["url"], "R1") {
			t.Fatalf("notification url must contain the room id: %v", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("offer did not trigger the push provider")
	}

	sendFrame(t, owner, `{"type":"hangup"}`)
	expectFrame(t, caller, KindHangup)

	owner.Close()
	expectFrame(t, caller, KindPeerLeft)

	caller.Close()
	deadline := time.Now().Add(5 * time.Second)
	for ts.roomCount(t) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("room R1 survived both disconnects")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSocketDiscards(t *testing.T) {
	ts := newTestServer(t)

	owner := ts.dial(t)
	sendFrame(t, owner, `{"type":"join","roomId":"R1","role":"owner"}`)
	expectFrame(t, owner, KindJoined)

	peer := ts.dial(t)
	ts.push.Subscribe("R1", json.RawMessage(`{"endpoint":"https://push/owner"}`))

	// malformed, pre-join and unknown envelopes all drop silently
	sendFrame(t, peer, `not json`)
	sendFrame(t, peer, `{"type":"offer","offer":{"sdp":"x"}}`)
	sendFrame(t, peer, `{"type":"mystery"}`)

	sendFrame(t, peer, `{"type":"join","roomId":"R1","role":"caller"}`)
	expectFrame(t, peer, KindJoined)
	expectFrame(t, owner, KindPeerJoined)

	// the connection survived every discard and still relays
	sendFrame(t, peer, `{"type":"ring"}`)
	expectFrame(t, owner, KindRing)

	select {
	case <-ts.sender.payloads:
		t.Fatal("discarded pre-join offer must not trigger push")
	default:
	}
}
