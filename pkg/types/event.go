package types

import "time"

// EventName identifies a message delivered on the live channel
type EventName string

const (
	// EventConnect and EventDisconnect are synthesized by the connection
	// manager on transport transitions; the server never sends them.
	EventConnect    EventName = "connect"
	EventDisconnect EventName = "disconnect"

	EventConnected     EventName = "connected"
	EventSubscribed    EventName = "subscribed"
	EventScanStarted   EventName = "scan_started"
	EventScanOutput    EventName = "scan_output"
	EventScanComplete  EventName = "scan_complete"
	EventScanError     EventName = "scan_error"
	EventScanStopped   EventName = "scan_stopped"
	EventConfigUpdated EventName = "config_updated"

	// EventSubscribe is the only event sent by the client
	EventSubscribe EventName = "subscribe"
)

func (e EventName) String() string {
	return string(e)
}

// Event is a single message received from the live channel, kept in
// arrival order by the connection manager.
type Event struct {
	Name       EventName
	Payload    []byte // raw JSON, empty for synthetic events
	ReceivedAt time.Time
}

// ScanStartedPayload is the body of a scan_started event
type ScanStartedPayload struct {
	TaskID string `json:"task_id"`
	Target string `json:"target"`
}

// ScanOutputPayload is the body of a scan_output event
type ScanOutputPayload struct {
	TaskID string `json:"task_id"`
	Output string `json:"output"`
}

// ScanCompletePayload is the body of a scan_complete event
type ScanCompletePayload struct {
	TaskID  string `json:"task_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ScanErrorPayload is the body of a scan_error event.
// task_id is optional, older servers only send the error text.
type ScanErrorPayload struct {
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error"`
}

// SubscribePayload is sent with the subscribe event
type SubscribePayload struct {
	Room string `json:"room"`
}
