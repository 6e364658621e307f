package bus

import "time"

// Event kinds. Subscribers filter on prefixes such as "sync." or "names.".
const (
	KindStatusChanged = "status.changed"
	KindConversations = "sync.conversations"
	KindThread        = "sync.thread"
	KindNameResolved  = "names.resolved"
	KindSendAck       = "message.send_ack"
	KindSendFailed    = "message.send_failed"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
