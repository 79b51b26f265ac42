package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	return NewHub(zerolog.Nop())
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.Send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("client did not receive event")
	}
	return Event{}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := newTestHub()
	client := NewClient(TopicHistory)

	hub.Register(client)
	if hub.ClientCount() != 1 || hub.TopicCount(TopicHistory) != 1 {
		t.Fatalf("expected 1 client on %s, got %d/%d", TopicHistory, hub.ClientCount(), hub.TopicCount(TopicHistory))
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.TopicCount(TopicHistory) != 0 {
		t.Fatal("expected client removed")
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send channel to be closed")
	}

	// Second unregister must not panic on the closed channel.
	hub.Unregister(client)
}

func TestHub_PublishOnlyToSubscribers(t *testing.T) {
	hub := newTestHub()
	sub := NewClient(ProfileTopic("123456789"))
	other := NewClient(ProfileTopic("987654321"))
	hub.Register(sub)
	hub.Register(other)

	ev, err := NewEvent("entry.created", ProfileTopic("123456789"), map[string]string{"title": "letter"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := receive(t, sub)
	if got.Type != "entry.created" || got.Topic != "profile/123456789" {
		t.Errorf("unexpected event: %+v", got)
	}
	var payload map[string]string
	json.Unmarshal(got.Data, &payload)
	if payload["title"] != "letter" {
		t.Errorf("expected payload to survive, got %s", got.Data)
	}

	select {
	case <-other.Send:
		t.Fatal("non-subscriber received event")
	default:
	}
}

func TestHub_PublishDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub()
	client := NewClient(TopicHistory)
	hub.Register(client)

	ev, _ := NewEvent("history.reset", TopicHistory, nil)
	for i := 0; i < sendBuffer+5; i++ {
		if err := hub.Publish(context.Background(), ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(client.Send) != sendBuffer {
		t.Errorf("expected buffer of %d, got %d", sendBuffer, len(client.Send))
	}
}

func TestHub_ProcessMessage(t *testing.T) {
	hub := newTestHub()
	client := NewClient()
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{TopicHistory, TopicDictation}})
	if hub.TopicCount(TopicHistory) != 1 || hub.TopicCount(TopicDictation) != 1 {
		t.Fatal("expected subscriptions to be added")
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{TopicHistory}})
	if hub.TopicCount(TopicHistory) != 0 || hub.TopicCount(TopicDictation) != 1 {
		t.Fatal("expected only history to be removed")
	}

	hub.ProcessMessage(client, ClientMessage{Action: "shout", Topics: []string{"x"}})
	if hub.TopicCount("x") != 0 {
		t.Fatal("unknown action must not subscribe")
	}

	hub.Unregister(client)
	if hub.TopicCount(TopicDictation) != 0 {
		t.Fatal("expected dynamic subscription removed on unregister")
	}
}

func TestHub_ConcurrentPublish(t *testing.T) {
	hub := newTestHub()
	ev, _ := NewEvent("entry.updated", TopicHistory, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := NewClient(TopicHistory)
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			_ = hub.Publish(context.Background(), ev)
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	NewHandler(newTestHub(), nil, zerolog.Nop()).RegisterRoutes(e.Group(""))

	for _, r := range e.Routes() {
		if r.Path == "/ws" && r.Method == http.MethodGet {
			return
		}
	}
	t.Fatal("expected GET /ws route to be registered")
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	h := NewHandler(newTestHub(), nil, zerolog.Nop())
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ws", nil), rec)

	if err := h.HandleConnect(c); err == nil && rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("expected upgrade to fail for non-websocket request")
	}
}

func dial(t *testing.T, server *httptest.Server, query string, header http.Header) (*gorillawebsocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
	return gorillawebsocket.DefaultDialer.Dial(url, header)
}

func TestHandler_EndToEnd(t *testing.T) {
	hub := newTestHub()
	e := echo.New()
	NewHandler(hub, nil, zerolog.Nop()).RegisterRoutes(e.Group(""))
	server := httptest.NewServer(e)
	defer server.Close()

	conn, resp, err := dial(t, server, "?topic="+TopicHistory, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(time.Second)
	for hub.TopicCount(TopicHistory) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{TopicDictation}}); err != nil {
		t.Fatalf("failed to send subscribe: %v", err)
	}
	for hub.TopicCount(TopicDictation) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ev, _ := NewEvent("dictation.ready", TopicDictation, nil)
	hub.Publish(context.Background(), ev)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if received.Type != "dictation.ready" {
		t.Fatalf("expected dictation.ready, got %s", received.Type)
	}
}

func TestHandler_OriginCheck(t *testing.T) {
	e := echo.New()
	NewHandler(newTestHub(), []string{"https://allowed.example"}, zerolog.Nop()).RegisterRoutes(e.Group(""))
	server := httptest.NewServer(e)
	defer server.Close()

	_, _, err := dial(t, server, "", http.Header{"Origin": []string{"https://evil.example"}})
	if err == nil {
		t.Fatal("expected dial from disallowed origin to fail")
	}

	conn, _, err := dial(t, server, "", http.Header{"Origin": []string{"https://allowed.example"}})
	if err != nil {
		t.Fatalf("expected allowed origin to connect: %v", err)
	}
	conn.Close()
}
