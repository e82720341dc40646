package mlme

// ResultCode is the outcome carried by every confirmation.
// Any code other than ResultSuccess is a failure; the specific reason is
// informational only.
type ResultCode uint8

const (
	// ResultSuccess indicates the request completed successfully.
	ResultSuccess ResultCode = 0

	// ResultFailure is an unspecified failure.
	ResultFailure ResultCode = 1

	// ResultRefused indicates the peer rejected the request.
	ResultRefused ResultCode = 2

	// ResultTimeout indicates the MLME gave up waiting for the peer.
	ResultTimeout ResultCode = 3

	// ResultUnsupported indicates a requested capability is not supported.
	ResultUnsupported ResultCode = 4
)

// IsSuccess returns true if the code indicates success.
func (r ResultCode) IsSuccess() bool {
	return r == ResultSuccess
}

// String returns the result code name.
func (r ResultCode) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESS"
	case ResultFailure:
		return "FAILURE"
	case ResultRefused:
		return "REFUSED"
	case ResultTimeout:
		return "TIMEOUT"
	case ResultUnsupported:
		return "UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// BSSType restricts which kind of network a scan looks for.
type BSSType uint8

const (
	BSSTypeInfrastructure BSSType = 1
	BSSTypeIndependent    BSSType = 2
	BSSTypeAny            BSSType = 3
)

// String returns the BSS type name.
func (t BSSType) String() string {
	switch t {
	case BSSTypeInfrastructure:
		return "INFRASTRUCTURE"
	case BSSTypeIndependent:
		return "INDEPENDENT"
	case BSSTypeAny:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// AuthType selects the 802.11 authentication algorithm.
type AuthType uint8

const (
	AuthOpenSystem AuthType = 1
	AuthSharedKey  AuthType = 2
)

// String returns the authentication type name.
func (t AuthType) String() string {
	switch t {
	case AuthOpenSystem:
		return "OPEN_SYSTEM"
	case AuthSharedKey:
		return "SHARED_KEY"
	default:
		return "UNKNOWN"
	}
}
