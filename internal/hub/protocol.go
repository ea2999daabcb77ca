package hub

// EventMessage carries one sink event to subscribed clients.
type EventMessage struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	Kind      string `json:"kind,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Ts        int64  `json:"ts"`
}

// ClientMessage is anything a client may send. Data is base64 for
// terminal_input.
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
}

type HelloMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

type ErrorMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type hubBroadcast struct {
	data      []byte
	sessionID string
}
