package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/httputil"
	"github.com/cwrk-planet/attendance-service/internal/live"
	"github.com/cwrk-planet/attendance-service/internal/logger"
	"github.com/cwrk-planet/attendance-service/pkg/liveview"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

func newUpgrader(origins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origins) == 0 || slices.Contains(origins, "*") {
				return true
			}
			if slices.Contains(origins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// GET /api/attendees/live
func (h *Handlers) LiveSnapshot(w http.ResponseWriter, r *http.Request) {
	rows, err := h.dashboard.Live(r.Context())
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	out := make([]liveview.Row, 0, len(rows))
	for _, v := range rows {
		out = append(out, toRow(v))
	}
	httputil.OK(w, out)
}

// GET /api/attendees/stream — websocket при запросе апгрейда, иначе SSE.
// Первое сообщение всегда connected: сессия уже подписана, снапшот можно брать.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.streamWS(w, r)
		return
	}
	h.streamSSE(w, r)
}

func (h *Handlers) streamWS(w http.ResponseWriter, r *http.Request) {
	log := httputil.L(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам ответил клиенту
		log.Warn("websocket upgrade failed", logger.Err(err))
		return
	}
	defer conn.Close()

	sess := h.live.Subscribe()
	defer sess.Close()
	log = log.With(slog.String("session", sess.ID()))
	log.Info("live stream opened", slog.String("transport", "websocket"))

	conn.SetReadLimit(512)
	conn.SetPongHandler(func(string) error {
		sess.Touch()
		return nil
	})

	// читатель нужен для control-фреймов; входящие данные игнорируются
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := writeWSJSON(conn, live.Connected()); err != nil {
		return
	}

	ping := time.NewTicker(h.live.Heartbeat())
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-gone:
			log.Debug("live stream closed by client")
			return
		case <-sess.Done():
			reason := sess.Err()
			log.Info("live stream ended", logger.Err(reason))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, closeText(reason)),
				time.Now().Add(writeWait))
			return
		case ev := <-sess.Events():
			if err := writeWSJSON(conn, ev); err != nil {
				log.Debug("live write failed", logger.Err(err))
				return
			}
			sess.Delivered(ev.Seq)
			sess.Touch()
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeWSJSON(conn *websocket.Conn, ev live.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

func closeText(err error) string {
	switch {
	case errors.Is(err, live.ErrSlowConsumer):
		return "slow consumer"
	case errors.Is(err, live.ErrStale):
		return "stale session"
	case errors.Is(err, live.ErrClosed):
		return "server shutting down"
	}
	return "closed"
}

func (h *Handlers) streamSSE(w http.ResponseWriter, r *http.Request) {
	log := httputil.L(r.Context())
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sess := h.live.Subscribe()
	defer sess.Close()
	log = log.With(slog.String("session", sess.ID()))
	log.Info("live stream opened", slog.String("transport", "sse"))

	w.WriteHeader(http.StatusOK)
	if err := writeSSE(w, rc, live.Connected()); err != nil {
		return
	}

	beat := time.NewTicker(h.live.Heartbeat())
	defer beat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			log.Info("live stream ended", logger.Err(sess.Err()))
			return
		case ev := <-sess.Events():
			if err := writeSSE(w, rc, ev); err != nil {
				log.Debug("live write failed", logger.Err(err))
				return
			}
			sess.Delivered(ev.Seq)
			sess.Touch()
		case <-beat.C:
			if err := writeSSE(w, rc, live.Event{Type: live.TypeHeartbeat}); err != nil {
				return
			}
			sess.Touch()
		}
	}
}

func writeSSE(w http.ResponseWriter, rc *http.ResponseController, ev live.Event) error {
	_ = rc.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", ev.Seq); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
