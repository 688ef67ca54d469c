package chat

import "encoding/json"

const (
	EventSend         = "chat:send"
	EventMessage      = "chat:message"
	EventRejected     = "chat:rejected"
	EventNotification = "notification"
)

// Frame is the wire envelope for every websocket event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewFrame(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}
