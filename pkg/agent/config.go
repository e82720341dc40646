package agent

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by New and Config.Validate.
var ErrInvalidConfig = errors.New("invalid agent config")

// Config holds the timing parameters forwarded to the MLME. All fields are
// required; the agent applies no defaults.
type Config struct {
	// ProbeDelay is the delay before probing a channel during active scan.
	ProbeDelay time.Duration

	// MinChannelTime and MaxChannelTime bound the time spent per channel.
	MinChannelTime time.Duration
	MaxChannelTime time.Duration

	// AuthenticationTimeout is forwarded in every AuthenticateRequest.
	AuthenticationTimeout time.Duration

	// AssociationTimeout is forwarded in every AssociateRequest.
	AssociationTimeout time.Duration
}

// Validate checks that every parameter is usable.
func (c Config) Validate() error {
	if c.ProbeDelay < 0 {
		return fmt.Errorf("%w: probe delay %v is negative", ErrInvalidConfig, c.ProbeDelay)
	}
	if c.MinChannelTime <= 0 {
		return fmt.Errorf("%w: min channel time must be positive", ErrInvalidConfig)
	}
	if c.MaxChannelTime < c.MinChannelTime {
		return fmt.Errorf("%w: max channel time %v < min channel time %v",
			ErrInvalidConfig, c.MaxChannelTime, c.MinChannelTime)
	}
	if c.AuthenticationTimeout <= 0 {
		return fmt.Errorf("%w: authentication timeout must be positive", ErrInvalidConfig)
	}
	if c.AssociationTimeout <= 0 {
		return fmt.Errorf("%w: association timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
