package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/vignan/diaries/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// ServeWS upgrades the request and lets the connection join and leave post channels.
// Joining is unauthenticated and unlimited.
func ServeWS(hub *Hub, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(ctx *gin.Context) {
		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error
			utils.Sugar.Debugf("websocket upgrade failed: %v", err)
			return
		}
		sub := NewSubscriber(sendBuffer)
		go writePump(conn, sub)
		readPump(hub, conn, sub)
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	all := len(allowed) == 0
	set := map[string]bool{}
	for _, o := range allowed {
		if o == "*" {
			all = true
		}
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return all || origin == "" || set[strings.TrimRight(origin, "/")]
	}
}

func readPump(hub *Hub, conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		hub.Remove(sub)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Sugar.Debugf("websocket read: %v", err)
			}
			return
		}

		var postID string
		if err := json.Unmarshal(msg.Data, &postID); err != nil || strings.TrimSpace(postID) == "" {
			continue
		}
		switch msg.Event {
		case EventJoinPost:
			hub.Join(PostChannel(postID), sub)
		case EventLeavePost:
			hub.Leave(PostChannel(postID), sub)
		}
	}
}

func writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame := <-sub.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
