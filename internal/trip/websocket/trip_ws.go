package websocket

import (
	"net/http"
	"time"

	"trip-hail-system/internal/common/logger"
	"trip-hail-system/internal/trip/notify"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
)

// TripEventsHandler upgrades the request and streams the trip's live
// notification events until the client disconnects. Events published before
// the subscription are not replayed; the event log is the history.
func TripEventsHandler(bus *notify.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		tripID := r.PathValue("trip_id")
		if tripID == "" {
			http.Error(w, "trip_id is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("ws_upgrade_failed", "Failed to upgrade WebSocket", requestID, tripID, err.Error())
			return
		}
		defer conn.Close()

		events, cancel := bus.Subscribe(tripID)
		defer cancel()

		logger.Info("ws_subscribed", "Subscriber connected to trip stream", requestID, tripID)

		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})

		// Reader only watches for disconnect; inbound frames are ignored.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				logger.Info("ws_unsubscribed", "Subscriber disconnected", requestID, tripID)
				return

			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					logger.Debug("ws_ping_failed", "Ping failed, dropping subscriber", requestID, tripID)
					return
				}

			case ev, ok := <-events:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug("ws_write_failed", "Write failed, dropping subscriber", requestID, tripID)
					return
				}
			}
		}
	}
}
