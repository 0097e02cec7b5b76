package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/lodestone-labs/macroexec/internal/eventbus"
	"github.com/lodestone-labs/macroexec/internal/lifecycle"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) lifecycle.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	var ev lifecycle.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshaling event: %v", err)
	}
	return ev
}

func TestRelay_StreamsAllEvents(t *testing.T) {
	bus := eventbus.New[lifecycle.Event]()
	srv := httptest.NewServer(http.HandlerFunc(New(bus).ServeHTTP))
	defer srv.Close()

	conn := dial(t, wsURL(srv))
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give the handler's Subscribe a moment to register before sending.
	time.Sleep(20 * time.Millisecond)

	bus.Send(lifecycle.Event{Pid: 1, Kind: lifecycle.EventStarted})
	ev := readEvent(t, conn)
	if ev.Pid != 1 || ev.Kind != lifecycle.EventStarted {
		t.Errorf("got %+v, want Pid 1 Started", ev)
	}

	bus.Send(lifecycle.Event{Pid: 2, Kind: lifecycle.EventStopped, ExitStatus: lifecycle.SuccessStatus()})
	ev = readEvent(t, conn)
	if ev.Pid != 2 || ev.Kind != lifecycle.EventStopped {
		t.Errorf("got %+v, want Pid 2 Stopped", ev)
	}
}

func TestRelay_FiltersByPid(t *testing.T) {
	bus := eventbus.New[lifecycle.Event]()
	srv := httptest.NewServer(http.HandlerFunc(New(bus).ServeHTTP))
	defer srv.Close()

	conn := dial(t, wsURL(srv)+"?pid=5")
	defer conn.Close(websocket.StatusNormalClosure, "")

	time.Sleep(20 * time.Millisecond)

	bus.Send(lifecycle.Event{Pid: 1, Kind: lifecycle.EventStarted})
	bus.Send(lifecycle.Event{Pid: 5, Kind: lifecycle.EventStarted})

	ev := readEvent(t, conn)
	if ev.Pid != 5 {
		t.Errorf("got Pid %d, want only pid=5 events to pass the filter", ev.Pid)
	}
}

func TestRelay_ClientDisconnectStopsHandlerCleanly(t *testing.T) {
	bus := eventbus.New[lifecycle.Event]()
	srv := httptest.NewServer(http.HandlerFunc(New(bus).ServeHTTP))
	defer srv.Close()

	conn := dial(t, wsURL(srv))
	conn.Close(websocket.StatusNormalClosure, "done")

	// Sending after the client has gone away must not block or panic;
	// the handler's subscription simply stops being read from.
	bus.Send(lifecycle.Event{Pid: 9, Kind: lifecycle.EventStarted})
}
