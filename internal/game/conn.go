package game

// Conn is a single client connection as seen by the game core. The core only
// needs an identity and a way to push a message out; the websocket transport
// in internal/api provides the real implementation.
//
// Send is called from the game loop goroutine and must never block.
type Conn interface {
	ID() string
	Send(msgType string, data any)
}
