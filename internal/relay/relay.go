// Package relay exposes a loopback debug endpoint that streams lifecycle
// events as NDJSON over a WebSocket connection, for the macroctl CLI's
// tail subcommand. Grounded on a websocket.go Go-side usage of
// github.com/coder/websocket (Accept/Write/Close), adapted from a fetch
// polyfill bridge to a small standalone http.Handler.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/lodestone-labs/macroexec/internal/eventbus"
	"github.com/lodestone-labs/macroexec/internal/lifecycle"
)

// writeTimeout bounds each NDJSON frame write.
const writeTimeout = 5 * time.Second

// Relay streams every lifecycle.Event published on bus to connected
// WebSocket clients. Not required for spawning or aborting macros — an
// operator convenience only; a host's own HTTP API stays out of scope here.
type Relay struct {
	bus *eventbus.Bus[lifecycle.Event]
}

// New wraps bus for serving.
func New(bus *eventbus.Bus[lifecycle.Event]) *Relay {
	return &Relay{bus: bus}
}

// ServeHTTP upgrades the request to a WebSocket and streams events until
// the client disconnects. An optional "pid" query parameter filters the
// stream to a single PID.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		log.Printf("relay: accepting connection: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "relay closing")

	var filterPid *lifecycle.Pid
	if pidStr := req.URL.Query().Get("pid"); pidStr != "" {
		if pid, err := strconv.ParseUint(pidStr, 10, 64); err == nil {
			p := lifecycle.Pid(pid)
			filterPid = &p
		}
	}

	sub := r.bus.Subscribe(64)
	defer sub.Unsubscribe()

	ctx := req.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if filterPid != nil && ev.Pid != *filterPid {
				continue
			}
			line, err := json.Marshal(ev)
			if err != nil {
				log.Printf("relay: marshaling event: %v", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, line)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
