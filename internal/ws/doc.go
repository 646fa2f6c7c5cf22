// Package ws bridges a browser terminal to a shell session over a
// websocket.
//
// GET /terminal attaches to ?session_id=<id>, or starts a new session sized
// by ?cols=&rows= that is killed when the socket closes.
//
// Frames (Client → Server):
//   - binary or text: keystrokes, passed through the command interceptor so
//     curl and fetch lines run via the coordinator's proxy path
//   - text JSON {"type":"resize","cols":120,"rows":40}: resize the terminal
//   - text JSON {"type":"ping"}: answered with {"type":"pong"}
//
// Frames (Server → Client):
//   - text JSON {"type":"session","session_id":..,"owned":..}: sent first
//   - binary: scrollback replay, then live terminal output
//   - text JSON {"type":"error","message":..}
//
// The socket is closed with a normal close frame when the shell exits.
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, coordinator, ws.Config{Metrics: metrics, Logger: logger})
//	router.GET("/terminal", handler.HandleConnection)
package ws
