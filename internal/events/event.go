package events

// chatEvent is the raw JSON structure pushed on the events socket.
type chatEvent struct {
	Kind    string       `json:"kind"`
	Message *messageBody `json:"message,omitempty"`
}

// messageBody is the message payload of a "message" event. It matches the
// backend's chat message wire shape.
type messageBody struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}
