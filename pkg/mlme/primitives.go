package mlme

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors.
var (
	ErrZeroSequence = errors.New("sequence 0 is reserved")
	ErrNoAddress    = errors.New("target address is not set")
	ErrBadTiming    = errors.New("timing parameter must be positive")
)

// Kind discriminates the three request/confirm pairs.
type Kind uint8

const (
	KindScan         Kind = 1
	KindAuthenticate Kind = 2
	KindAssociate    Kind = 3
)

// String returns the primitive kind name.
func (k Kind) String() string {
	switch k {
	case KindScan:
		return "SCAN"
	case KindAuthenticate:
		return "AUTHENTICATE"
	case KindAssociate:
		return "ASSOCIATE"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true for the three defined kinds.
func (k Kind) IsValid() bool {
	return k >= KindScan && k <= KindAssociate
}

// BSSDescription describes one access point found by a scan.
type BSSDescription struct {
	BSSID          MACAddress    `cbor:"1,keyasint" json:"bssid"`
	Channel        int           `cbor:"2,keyasint" json:"channel"`
	SSID           string        `cbor:"3,keyasint" json:"ssid"`
	BeaconInterval time.Duration `cbor:"4,keyasint" json:"beacon_interval"`

	// RxPower is the received signal strength of the AP's beacons or
	// probe responses. Larger is stronger.
	RxPower float64 `cbor:"5,keyasint" json:"rx_power"`
}

// Request is a primitive sent from the agent to the MLME.
type Request interface {
	Kind() Kind
	Sequence() uint32
	Validate() error
	isRequest()
}

// Confirm is a primitive returned by the MLME in answer to a Request.
type Confirm interface {
	Kind() Kind
	Sequence() uint32
	ResultCode() ResultCode
	isConfirm()
}

// ScanRequest asks the MLME to discover access points.
//
// CBOR encoding:
//
//	{
//	  1: seq,            // uint32
//	  2: bssType,        // uint8
//	  3: activeScan,     // bool
//	  4: probeDelay,     // int64 nanoseconds
//	  5: minChannelTime, // int64 nanoseconds
//	  6: maxChannelTime  // int64 nanoseconds
//	}
type ScanRequest struct {
	Seq            uint32        `cbor:"1,keyasint"`
	BSSType        BSSType       `cbor:"2,keyasint"`
	ActiveScan     bool          `cbor:"3,keyasint"`
	ProbeDelay     time.Duration `cbor:"4,keyasint"`
	MinChannelTime time.Duration `cbor:"5,keyasint"`
	MaxChannelTime time.Duration `cbor:"6,keyasint"`
}

func (*ScanRequest) Kind() Kind         { return KindScan }
func (r *ScanRequest) Sequence() uint32 { return r.Seq }
func (*ScanRequest) isRequest()         {}

// Validate checks the request fields.
func (r *ScanRequest) Validate() error {
	if r.Seq == 0 {
		return ErrZeroSequence
	}
	if r.MinChannelTime <= 0 || r.MaxChannelTime <= 0 {
		return fmt.Errorf("%w: channel time", ErrBadTiming)
	}
	if r.ProbeDelay < 0 {
		return fmt.Errorf("%w: probe delay", ErrBadTiming)
	}
	return nil
}

// AuthenticateRequest asks the MLME to authenticate with an access point.
type AuthenticateRequest struct {
	Seq      uint32        `cbor:"1,keyasint"`
	Address  MACAddress    `cbor:"2,keyasint"`
	AuthType AuthType      `cbor:"3,keyasint"`
	Timeout  time.Duration `cbor:"4,keyasint"`
}

func (*AuthenticateRequest) Kind() Kind         { return KindAuthenticate }
func (r *AuthenticateRequest) Sequence() uint32 { return r.Seq }
func (*AuthenticateRequest) isRequest()         {}

// Validate checks the request fields.
func (r *AuthenticateRequest) Validate() error {
	if r.Seq == 0 {
		return ErrZeroSequence
	}
	if r.Address.IsZero() {
		return ErrNoAddress
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("%w: authentication timeout", ErrBadTiming)
	}
	return nil
}

// AssociateRequest asks the MLME to associate with an authenticated AP.
type AssociateRequest struct {
	Seq     uint32        `cbor:"1,keyasint"`
	Address MACAddress    `cbor:"2,keyasint"`
	Timeout time.Duration `cbor:"3,keyasint"`
}

func (*AssociateRequest) Kind() Kind         { return KindAssociate }
func (r *AssociateRequest) Sequence() uint32 { return r.Seq }
func (*AssociateRequest) isRequest()         {}

// Validate checks the request fields.
func (r *AssociateRequest) Validate() error {
	if r.Seq == 0 {
		return ErrZeroSequence
	}
	if r.Address.IsZero() {
		return ErrNoAddress
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("%w: association timeout", ErrBadTiming)
	}
	return nil
}

// ScanConfirm carries the result of a scan. An empty BSSList means no
// access point was found.
type ScanConfirm struct {
	Seq     uint32           `cbor:"1,keyasint"`
	Result  ResultCode       `cbor:"2,keyasint"`
	BSSList []BSSDescription `cbor:"3,keyasint,omitempty"`
}

func (*ScanConfirm) Kind() Kind               { return KindScan }
func (c *ScanConfirm) Sequence() uint32       { return c.Seq }
func (c *ScanConfirm) ResultCode() ResultCode { return c.Result }
func (*ScanConfirm) isConfirm()               {}

// AuthenticateConfirm carries the result of an authentication attempt.
type AuthenticateConfirm struct {
	Seq     uint32     `cbor:"1,keyasint"`
	Result  ResultCode `cbor:"2,keyasint"`
	Address MACAddress `cbor:"3,keyasint"`
}

func (*AuthenticateConfirm) Kind() Kind               { return KindAuthenticate }
func (c *AuthenticateConfirm) Sequence() uint32       { return c.Seq }
func (c *AuthenticateConfirm) ResultCode() ResultCode { return c.Result }
func (*AuthenticateConfirm) isConfirm()               {}

// AssociateConfirm carries the result of an association attempt.
type AssociateConfirm struct {
	Seq     uint32     `cbor:"1,keyasint"`
	Result  ResultCode `cbor:"2,keyasint"`
	Address MACAddress `cbor:"3,keyasint"`
}

func (*AssociateConfirm) Kind() Kind               { return KindAssociate }
func (c *AssociateConfirm) Sequence() uint32       { return c.Seq }
func (c *AssociateConfirm) ResultCode() ResultCode { return c.Result }
func (*AssociateConfirm) isConfirm()               {}

// Compile-time interface satisfaction checks.
var (
	_ Request = (*ScanRequest)(nil)
	_ Request = (*AuthenticateRequest)(nil)
	_ Request = (*AssociateRequest)(nil)
	_ Confirm = (*ScanConfirm)(nil)
	_ Confirm = (*AuthenticateConfirm)(nil)
	_ Confirm = (*AssociateConfirm)(nil)
)
