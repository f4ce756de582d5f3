package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

const (
	eventBuffer     = 256
	eventWriteWait  = 5 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = 50 * time.Second
)

// EventSource hands out live event subscriptions.
type EventSource interface {
	Subscribe(buffer int) (<-chan gumball.Event, func())
}

type eventStream struct {
	src      EventSource
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func newEventStream(src EventSource, logger *slog.Logger) *eventStream {
	return &eventStream{
		src: src,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// GET /events[?account=]
//
// Streams committed events as JSON text frames. With account set only
// events naming that account (as actor or counterpart) are sent.
func (s *eventStream) serve(w http.ResponseWriter, r *http.Request) {
	filter := gumball.Account(r.URL.Query().Get("account"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		return
	}
	defer conn.Close()

	events, cancel := s.src.Subscribe(eventBuffer)
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// Reader: consume control frames and notice the client going away.
	go func() {
		defer stop()

		_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventPongWait))
		})

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingPeriod)
	defer ping.Stop()

	s.log.Debug("event subscriber connected", "remote", r.RemoteAddr, "account", filter)

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))

			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))

			err := conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}

			if filter != "" && ev.Account != filter && ev.Counterpart != filter {
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))

			err := conn.WriteJSON(ev)
			if err != nil {
				s.log.Debug("event subscriber write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}
