package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ErrUnsupportedVersion is returned by Load for files written by a newer
// format.
var ErrUnsupportedVersion = errors.New("unsupported state file version")

// StationState is the persisted state of one station.
type StationState struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	// Station is the local station address.
	Station string `json:"station"`

	// LastConnected is the most recent successful association, if any.
	LastConnected *ConnectionRecord `json:"last_connected,omitempty"`

	// Totals accumulate across runs.
	Totals Counters `json:"totals"`
}

// ConnectionRecord describes one successful association.
type ConnectionRecord struct {
	BSSID       string    `json:"bssid"`
	SSID        string    `json:"ssid"`
	Channel     int       `json:"channel"`
	RxPower     float64   `json:"rx_power"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Counters are lifetime totals.
type Counters struct {
	Runs       int `json:"runs"`
	Connects   int `json:"connects"`
	LinkLosses int `json:"link_losses"`
}

// StateStore manages a JSON state file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a store for path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file location.
func (s *StateStore) Path() string {
	return s.path
}

// Save writes state atomically, replacing any previous file.
func (s *StateStore) Save(state *StationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the state file. It returns nil, nil if the file does not
// exist.
func (s *StateStore) Load() (*StationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &StationState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, state.Version)
	}
	return state, nil
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
