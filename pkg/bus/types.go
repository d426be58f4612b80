package bus

// InboundMessage is a normalized chat message entering the gateway from a
// platform channel. SenderID and ChatID are platform-opaque identifiers;
// ChatID is the reply target the dispatch engine routes responses to.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	SenderID  string            `json:"sender_id"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	MessageID string            `json:"message_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a reply or broadcast leaving the gateway through a
// platform channel.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}
