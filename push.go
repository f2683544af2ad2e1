package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/chazu/meshview/pkg/session"
	"github.com/chazu/meshview/pkg/state"
)

const writeWait = 10 * time.Second

// upgrader leaves CheckOrigin unset: a handshake carrying an Origin header
// is accepted only when its host matches the request Host.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// serverMsg is pushed to the page.
type serverMsg struct {
	Type     string      `json:"type"`
	State    *state.Wire `json:"state,omitempty"`
	Busy     *bool       `json:"busy,omitempty"`
	Revision uint64      `json:"revision"`
}

// clientMsg is sent by the page.
type clientMsg struct {
	Type string `json:"type"`

	// set
	Field state.Field     `json:"field"`
	Value json.RawMessage `json:"value"`

	// camera
	Action    string  `json:"action"`
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	Factor    float64 `json:"factor"`
}

// outbox queues messages for one connection. Producers never block: store
// watchers run on the dispatch path.
type outbox struct {
	mu    sync.Mutex
	queue []serverMsg
	wake  chan struct{}
}

func newOutbox() *outbox {
	return &outbox{wake: make(chan struct{}, 1)}
}

func (o *outbox) put(m serverMsg) {
	o.mu.Lock()
	o.queue = append(o.queue, m)
	o.mu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) take() []serverMsg {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.queue
	o.queue = nil
	return q
}

// writeLoop sends queued messages until done is closed or a write fails.
func (o *outbox) writeLoop(conn *websocket.Conn, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-o.wake:
		}
		for _, m := range o.take() {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				log.Printf("push: write: %v", err)
				return
			}
		}
	}
}

func stateMsg(st state.State) serverMsg {
	w := st.Wire()
	return serverMsg{Type: "state", State: &w}
}

// push upgrades to a websocket bound to the session. The page receives the
// full state on connect and after every change, a busy message when only
// the busy flag moved, and a view message with the revision whenever the
// render view asks for a redraw.
func (a *App) push(c echo.Context) error {
	s := sessionOf(c)
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("push: upgrade: %v", err)
		return nil
	}
	defer conn.Close()

	s.Attach()
	defer func() {
		if s.Detach() {
			a.sessions.Remove(s.ID)
		}
	}()

	out := newOutbox()
	done := make(chan struct{})
	defer close(done)
	go out.writeLoop(conn, done)

	var mu sync.Mutex
	last := s.Store.Snapshot()
	out.put(stateMsg(last))
	out.put(serverMsg{Type: "view", Revision: s.View.Revision()})

	stopState := s.Store.Watch(func(st state.State) {
		mu.Lock()
		fields := last.Diff(st)
		last = st
		mu.Unlock()
		if len(fields) == 1 && fields[0] == state.FieldBusy {
			busy := st.Busy
			out.put(serverMsg{Type: "busy", Busy: &busy})
			return
		}
		out.put(stateMsg(st))
	})
	defer stopState()
	stopView := s.View.OnUpdate(func(rev uint64) {
		out.put(serverMsg{Type: "view", Revision: rev})
	})
	defer stopView()

	ctx := c.Request().Context()
	for {
		var m clientMsg
		if err := conn.ReadJSON(&m); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("push: session %s: read: %v", s.ID, err)
			}
			return nil
		}
		s.Touch()
		if err := handleClient(ctx, s, m); err != nil {
			log.Printf("push: session %s: %v", s.ID, err)
		}
	}
}

// handleClient applies one page message. Bad messages are reported and
// otherwise ignored.
func handleClient(ctx context.Context, s *session.Session, m clientMsg) error {
	switch m.Type {
	case "set":
		mutate, err := state.Input(m.Field, m.Value)
		if err != nil {
			return err
		}
		s.Store.Update(ctx, mutate)
	case "clear":
		s.ClearUpload(ctx)
	case "camera":
		switch m.Action {
		case "orbit":
			s.View.Orbit(m.Azimuth, m.Elevation)
		case "zoom":
			s.View.Zoom(m.Factor)
		case "reset":
			s.View.ResetCamera()
		default:
			return fmt.Errorf("unknown camera action %q", m.Action)
		}
		s.View.Update()
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}
