package agent

// State is the agent's connection phase.
type State uint8

const (
	// StateIdle is the state before Start.
	StateIdle State = iota

	// StateScanning indicates a scan request is outstanding.
	StateScanning

	// StateAuthenticating indicates an authenticate request is outstanding.
	StateAuthenticating

	// StateAssociating indicates an associate request is outstanding.
	StateAssociating

	// StateConnected indicates the station is associated. Nothing is
	// outstanding.
	StateConnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateScanning:
		return "SCANNING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateAssociating:
		return "ASSOCIATING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Stats counts what the agent has done since it was created.
type Stats struct {
	Scans         int `json:"scans"`
	EmptyScans    int `json:"empty_scans"`
	AuthAttempts  int `json:"auth_attempts"`
	AuthFailures  int `json:"auth_failures"`
	AssocAttempts int `json:"assoc_attempts"`
	AssocFailures int `json:"assoc_failures"`
	Connects      int `json:"connects"`
	LinkLosses    int `json:"link_losses"`
	Associations  int `json:"associated_notifications"`
	StaleConfirms int `json:"stale_confirms"`
}
