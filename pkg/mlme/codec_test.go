package mlme

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	apA = MustParseMAC("00:11:22:33:44:01")
	apB = MustParseMAC("00:11:22:33:44:02")
)

func TestRequestEncoding(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{
			name: "scan",
			req: &ScanRequest{
				Seq:            1,
				BSSType:        BSSTypeInfrastructure,
				ActiveScan:     true,
				ProbeDelay:     100 * time.Millisecond,
				MinChannelTime: 150 * time.Millisecond,
				MaxChannelTime: 300 * time.Millisecond,
			},
		},
		{
			name: "authenticate",
			req: &AuthenticateRequest{
				Seq:      2,
				Address:  apA,
				AuthType: AuthSharedKey,
				Timeout:  5 * time.Second,
			},
		},
		{
			name: "associate",
			req: &AssociateRequest{
				Seq:     3,
				Address: apB,
				Timeout: 5 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeRequest(tt.req)
			require.NoError(t, err)

			got, err := DecodeRequest(data)
			require.NoError(t, err)
			assert.Equal(t, tt.req, got)
			assert.Equal(t, tt.req.Kind(), got.Kind())
		})
	}
}

func TestConfirmEncoding(t *testing.T) {
	tests := []struct {
		name string
		c    Confirm
	}{
		{
			name: "scan with candidates",
			c: &ScanConfirm{
				Seq:    1,
				Result: ResultSuccess,
				BSSList: []BSSDescription{
					{BSSID: apA, Channel: 1, SSID: "home", BeaconInterval: 100 * time.Millisecond, RxPower: -70},
					{BSSID: apB, Channel: 6, SSID: "office", BeaconInterval: 100 * time.Millisecond, RxPower: -40.5},
				},
			},
		},
		{
			name: "authenticate refused",
			c:    &AuthenticateConfirm{Seq: 2, Result: ResultRefused, Address: apA},
		},
		{
			name: "associate success",
			c:    &AssociateConfirm{Seq: 3, Result: ResultSuccess, Address: apB},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeConfirm(tt.c)
			require.NoError(t, err)

			got, err := DecodeConfirm(data)
			require.NoError(t, err)
			assert.Equal(t, tt.c, got)
		})
	}
}

func TestScanConfirmEmptyList(t *testing.T) {
	data, err := EncodeConfirm(&ScanConfirm{Seq: 9, Result: ResultSuccess})
	require.NoError(t, err)

	got, err := DecodeConfirm(data)
	require.NoError(t, err)

	sc, ok := got.(*ScanConfirm)
	require.True(t, ok, "decoded %T, want *ScanConfirm", got)
	assert.Empty(t, sc.BSSList)
	assert.Equal(t, uint32(9), sc.Seq)
}

func TestEncodeRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"zero seq", &ScanRequest{MinChannelTime: 1, MaxChannelTime: 1}, ErrZeroSequence},
		{"scan without channel time", &ScanRequest{Seq: 1}, ErrBadTiming},
		{"auth without address", &AuthenticateRequest{Seq: 1, Timeout: time.Second}, ErrNoAddress},
		{"auth without timeout", &AuthenticateRequest{Seq: 1, Address: apA}, ErrBadTiming},
		{"assoc without address", &AssociateRequest{Seq: 1, Timeout: time.Second}, ErrNoAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeRequest(tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := EncodeRequest(nil)
	assert.ErrorIs(t, err, ErrNilPrimitive)
}

func TestDecodeUnknownKind(t *testing.T) {
	data, err := encMode.Marshal(envelope{Kind: 42, Payload: []byte{0xa0}})
	require.NoError(t, err)

	_, err = DecodeConfirm(data)
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("DecodeConfirm error = %v, want ErrUnknownKind", err)
	}
	_, err = DecodeRequest(data)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := DecodeConfirm([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestParseMAC(t *testing.T) {
	a, err := ParseMAC("0A-1B-2C-3D-4E-5F")
	require.NoError(t, err)
	assert.Equal(t, "0a:1b:2c:3d:4e:5f", a.String())
	assert.False(t, a.IsZero())

	_, err = ParseMAC("not-a-mac")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	// EUI-64 is valid for net.ParseMAC but not a station address
	_, err = ParseMAC("00:11:22:33:44:55:66:77")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	var b MACAddress
	require.NoError(t, b.UnmarshalText([]byte("00:11:22:33:44:01")))
	assert.Equal(t, apA, b)
	assert.True(t, MACAddress{}.IsZero())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "SCAN", KindScan.String())
	assert.Equal(t, "UNKNOWN", Kind(0).String())
	assert.Equal(t, "SHARED_KEY", AuthSharedKey.String())
	assert.Equal(t, "INFRASTRUCTURE", BSSTypeInfrastructure.String())
	assert.Equal(t, "REFUSED", ResultRefused.String())
	assert.True(t, ResultSuccess.IsSuccess())
	assert.False(t, ResultTimeout.IsSuccess())
}
