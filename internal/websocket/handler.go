package websocket

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
)

var errSendFailed = errors.New("websocket client is closed or too slow")

// ServeWs runs one websocket connection until the peer goes away.
func ServeWs(hub *Hub, conn *websocket.Conn, handler FrameHandler) {
	client := newClient(hub, conn)
	hub.register <- client

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.runTasks()
	client.readPump(ctx, handler) // Run readPump in current goroutine (handler)
}
