package mlme

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec errors.
var (
	ErrUnknownKind  = errors.New("unknown primitive kind")
	ErrNilPrimitive = errors.New("nil primitive")
)

// encMode is the CBOR encoder mode for management primitives.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for management primitives.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient for forward compatibility (unknown keys are skipped)
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// envelope wraps every primitive on the wire.
type envelope struct {
	Kind    Kind            `cbor:"1,keyasint"`
	Payload cbor.RawMessage `cbor:"2,keyasint"`
}

func encodeEnvelope(kind Kind, v any) ([]byte, error) {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(envelope{Kind: kind, Payload: payload})
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return envelope{}, err
	}
	if !env.Kind.IsValid() {
		return envelope{}, fmt.Errorf("%w: %d", ErrUnknownKind, env.Kind)
	}
	return env, nil
}

// EncodeRequest validates and encodes a request to CBOR bytes.
func EncodeRequest(req Request) ([]byte, error) {
	if req == nil {
		return nil, ErrNilPrimitive
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s request: %w", req.Kind(), err)
	}
	return encodeEnvelope(req.Kind(), req)
}

// DecodeRequest decodes CBOR bytes into a request.
func DecodeRequest(data []byte) (Request, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}

	var req Request
	switch env.Kind {
	case KindScan:
		req = &ScanRequest{}
	case KindAuthenticate:
		req = &AuthenticateRequest{}
	case KindAssociate:
		req = &AssociateRequest{}
	}
	if err := decMode.Unmarshal(env.Payload, req); err != nil {
		return nil, fmt.Errorf("failed to decode %s request: %w", env.Kind, err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s request: %w", env.Kind, err)
	}
	return req, nil
}

// EncodeConfirm encodes a confirmation to CBOR bytes.
func EncodeConfirm(c Confirm) ([]byte, error) {
	if c == nil {
		return nil, ErrNilPrimitive
	}
	return encodeEnvelope(c.Kind(), c)
}

// DecodeConfirm decodes CBOR bytes into a confirmation.
func DecodeConfirm(data []byte) (Confirm, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode confirm: %w", err)
	}

	var c Confirm
	switch env.Kind {
	case KindScan:
		c = &ScanConfirm{}
	case KindAuthenticate:
		c = &AuthenticateConfirm{}
	case KindAssociate:
		c = &AssociateConfirm{}
	}
	if err := decMode.Unmarshal(env.Payload, c); err != nil {
		return nil, fmt.Errorf("failed to decode %s confirm: %w", env.Kind, err)
	}
	return c, nil
}
