package ipc

// Frame type discriminants
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// Request methods
const (
	MethodDetect        = "detect"
	MethodStartDownload = "start_download"
	MethodCancel        = "cancel"
	MethodState         = "state"
)

// kindInvalidRequest marks errors in the request itself rather than its execution
const kindInvalidRequest = "invalid_request"

// Request is sent by the UI process
type Request struct {
	Type   string `msgpack:"type"`
	ID     uint64 `msgpack:"id"`
	Method string `msgpack:"method"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Message string `msgpack:"message"`
	Kind    string `msgpack:"kind"`
}

// Response answers exactly one Request, matched by ID
type Response struct {
	Type   string     `msgpack:"type"`
	ID     uint64     `msgpack:"id"`
	Result any        `msgpack:"result,omitempty"`
	Error  *ErrorBody `msgpack:"error,omitempty"`
}

// EventFrame relays one download event. Name is the UI channel
// (progress, complete, ...).
type EventFrame struct {
	Type    string `msgpack:"type"`
	Name    string `msgpack:"name"`
	Payload any    `msgpack:"payload"`
}

// PathResult is the result of a completed start_download
type PathResult struct {
	Path string `msgpack:"path"`
}

// CancelResult is the result of cancel
type CancelResult struct {
	Cancelled bool `msgpack:"cancelled"`
}
