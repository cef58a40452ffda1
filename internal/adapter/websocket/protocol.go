package websocket

import (
	"encoding/json"
	"fmt"
)

const (
	typeConnectionEstablished = "connection_established"
	typePing                  = "ping"
	typePong                  = "pong"
	typeSubscribe             = "subscribe"
	typeSubscribed            = "subscribed"
	typeError                 = "error"
)

type clientMessage struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type serverMessage struct {
	Type      string          `json:"type"`
	Message   string          `json:"message,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	UserID    *int64          `json:"user_id,omitempty"`
}

// protocol builds the replies for one connection. tagged connections echo
// their user id in every reply.
type protocol struct {
	identity int64
	tagged   bool
}

func (p protocol) established() []byte {
	if p.tagged {
		return p.encode(serverMessage{
			Type:    typeConnectionEstablished,
			Message: fmt.Sprintf("Connected as user %d", p.identity),
		})
	}
	return p.encode(serverMessage{Type: typeConnectionEstablished, Message: "Connected to voting system"})
}

func (p protocol) reply(data []byte) []byte {
	var in clientMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return p.encode(serverMessage{Type: typeError, Message: "Invalid message format"})
	}

	switch in.Type {
	case typePing:
		return p.encode(serverMessage{Type: typePong, Timestamp: in.Timestamp})
	case typeSubscribe:
		return p.encode(serverMessage{Type: typeSubscribed, Message: "Subscribed to real-time updates"})
	default:
		return p.encode(serverMessage{Type: typeError, Message: "Unknown message type"})
	}
}

func (p protocol) encode(m serverMessage) []byte {
	if p.tagged {
		m.UserID = &p.identity
	}
	// serverMessage holds only strings, an int and pre-validated raw JSON.
	b, _ := json.Marshal(m)
	return b
}
