package log

import (
	"time"

	"github.com/stamgmt/stamgmt-go/pkg/mlme"
)

// Event is a protocol capture record. CBOR encoding uses integer keys.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies one station run (UUID).
	SessionID string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// Station is the local station address, if known.
	Station string `cbor:"6,keyasint,omitempty"`

	// Exactly one of these is set.
	Frame        *FrameEvent        `cbor:"10,keyasint,omitempty"`
	Primitive    *PrimitiveEvent    `cbor:"11,keyasint,omitempty"`
	StateChange  *StateChangeEvent  `cbor:"12,keyasint,omitempty"`
	Notification *NotificationEvent `cbor:"13,keyasint,omitempty"`
	Error        *ErrorEventData    `cbor:"14,keyasint,omitempty"`
}

// Direction indicates flow relative to the agent.
type Direction uint8

const (
	// DirectionIn is MLME to agent (confirmations, notifications).
	DirectionIn Direction = 0
	// DirectionOut is agent to MLME (requests).
	DirectionOut Direction = 1
	// DirectionNone marks agent-internal events such as state changes.
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "-"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates where the event was captured.
type Layer uint8

const (
	// LayerLink is the framing layer between agent and MLME.
	LayerLink Layer = 0
	// LayerMLME is the decoded management primitive layer.
	LayerMLME Layer = 1
	// LayerAgent is the connection agent itself.
	LayerAgent Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerLink:
		return "LINK"
	case LayerMLME:
		return "MLME"
	case LayerAgent:
		return "AGENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event.
type Category uint8

const (
	CategoryPrimitive    Category = 0
	CategoryState        Category = 1
	CategoryNotification Category = 2
	CategoryError        Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPrimitive:
		return "PRIMITIVE"
	case CategoryState:
		return "STATE"
	case CategoryNotification:
		return "NOTIFICATION"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data on the MLME link.
type FrameEvent struct {
	// Size is the frame size in bytes including the length prefix.
	Size int `cbor:"1,keyasint"`

	// Data is the frame payload, possibly truncated.
	Data []byte `cbor:"2,keyasint,omitempty"`

	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// PrimitiveType distinguishes requests from confirmations.
type PrimitiveType uint8

const (
	PrimitiveRequest PrimitiveType = 0
	PrimitiveConfirm PrimitiveType = 1
)

// String returns the primitive type name.
func (p PrimitiveType) String() string {
	switch p {
	case PrimitiveRequest:
		return "REQUEST"
	case PrimitiveConfirm:
		return "CONFIRM"
	default:
		return "UNKNOWN"
	}
}

// PrimitiveEvent captures a decoded management primitive.
type PrimitiveEvent struct {
	Type PrimitiveType `cbor:"1,keyasint"`
	Kind mlme.Kind     `cbor:"2,keyasint"`
	Seq  uint32        `cbor:"3,keyasint"`

	// Result is set for confirmations.
	Result *mlme.ResultCode `cbor:"4,keyasint,omitempty"`

	// Address is the target (requests) or reported (confirms) BSSID.
	Address string `cbor:"5,keyasint,omitempty"`

	// Candidates is the number of BSS descriptions in a scan confirm.
	Candidates *int `cbor:"6,keyasint,omitempty"`

	// Stale marks a confirmation that no longer matched the outstanding
	// request and was dropped.
	Stale bool `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures an agent state transition.
type StateChangeEvent struct {
	OldState string `cbor:"1,keyasint,omitempty"`
	NewState string `cbor:"2,keyasint"`
	Reason   string `cbor:"3,keyasint,omitempty"`

	// Target is the BSSID being joined, if any.
	Target string `cbor:"4,keyasint,omitempty"`
}

// NotificationType identifies an asynchronous link signal.
type NotificationType uint8

const (
	NotificationLinkLost   NotificationType = 0
	NotificationAssociated NotificationType = 1
)

// String returns the notification type name.
func (n NotificationType) String() string {
	switch n {
	case NotificationLinkLost:
		return "LINK_LOST"
	case NotificationAssociated:
		return "ASSOCIATED"
	default:
		return "UNKNOWN"
	}
}

// NotificationEvent captures a link notification delivered to the agent.
type NotificationEvent struct {
	Type   NotificationType `cbor:"1,keyasint"`
	Detail string           `cbor:"2,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context describes what was being processed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// RequestEvent builds a PrimitiveEvent for an outgoing request.
func RequestEvent(req mlme.Request) *PrimitiveEvent {
	ev := &PrimitiveEvent{
		Type: PrimitiveRequest,
		Kind: req.Kind(),
		Seq:  req.Sequence(),
	}
	switch r := req.(type) {
	case *mlme.AuthenticateRequest:
		ev.Address = r.Address.String()
	case *mlme.AssociateRequest:
		ev.Address = r.Address.String()
	}
	return ev
}

// ConfirmEvent builds a PrimitiveEvent for an incoming confirmation.
func ConfirmEvent(c mlme.Confirm) *PrimitiveEvent {
	result := c.ResultCode()
	ev := &PrimitiveEvent{
		Type:   PrimitiveConfirm,
		Kind:   c.Kind(),
		Seq:    c.Sequence(),
		Result: &result,
	}
	switch cc := c.(type) {
	case *mlme.ScanConfirm:
		n := len(cc.BSSList)
		ev.Candidates = &n
	case *mlme.AuthenticateConfirm:
		ev.Address = cc.Address.String()
	case *mlme.AssociateConfirm:
		ev.Address = cc.Address.String()
	}
	return ev
}
