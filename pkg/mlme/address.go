package mlme

import (
	"errors"
	"fmt"
	"net"
)

// ErrInvalidAddress is returned when a MAC address cannot be parsed.
var ErrInvalidAddress = errors.New("invalid MAC address")

// MACAddress is a 48-bit IEEE 802 address identifying a station or BSS.
type MACAddress [6]byte

// BroadcastAddress is the all-ones address.
var BroadcastAddress = MACAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseMAC parses a colon or dash separated 48-bit address.
func ParseMAC(s string) (MACAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MACAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if len(hw) != 6 {
		return MACAddress{}, fmt.Errorf("%w: %q is not a 48-bit address", ErrInvalidAddress, s)
	}
	var a MACAddress
	copy(a[:], hw)
	return a, nil
}

// MustParseMAC is like ParseMAC but panics on error. Intended for tests and
// static tables.
func MustParseMAC(s string) MACAddress {
	a, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the address in lower-case colon-hex notation.
func (a MACAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsZero reports whether the address is unset.
func (a MACAddress) IsZero() bool {
	return a == MACAddress{}
}

// MarshalText implements encoding.TextMarshaler.
func (a MACAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *MACAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
