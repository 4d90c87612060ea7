package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pathcollab/pathcollab/internal/presence"
)

const (
	pingInterval = 30 * time.Second
	pingTimeout  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and runs its two cooperative
// tasks (§4.5's scheduling model): a reader goroutine feeding inbound
// frames to the hub, and the calling goroutine draining the
// connection's mailbox to the socket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.metrics.ConnectionOpened()
	pc := presence.NewConnection()

	conn.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.hub.HandleInbound(r.Context(), pc, data)
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

writeLoop:
	for {
		select {
		case data, ok := <-pc.Mailbox().Recv():
			if !ok {
				break writeLoop
			}
			conn.SetWriteDeadline(time.Now().Add(pingTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				break writeLoop
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(pingTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				break writeLoop
			}
		case <-done:
			break writeLoop
		}
	}

	s.hub.Disconnect(pc)
	<-done
}
