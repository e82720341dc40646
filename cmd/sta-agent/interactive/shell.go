// Package interactive provides the interactive command-line interface
// for sta-agent.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/stamgmt/stamgmt-go/pkg/agent"
	"github.com/stamgmt/stamgmt-go/pkg/mlme"
	"github.com/stamgmt/stamgmt-go/pkg/selection"
	"github.com/stamgmt/stamgmt-go/pkg/sim"
)

// Station is the read side of a running station.
type Station interface {
	SessionID() string
	Address() mlme.MACAddress
	State() agent.State
	Stats() agent.Stats
	Current() (mlme.BSSDescription, bool)
	Target() (mlme.BSSDescription, bool)
}

// Radio controls the simulated management entity.
type Radio interface {
	Environment() sim.Environment
	SetEnvironment(env sim.Environment)
	SetRejectAuth(addr mlme.MACAddress, reject bool) error
	SetRejectAssoc(addr mlme.MACAddress, reject bool) error
	Associated() (mlme.MACAddress, bool)
	Stats() sim.Stats
	DropLink()
}

// Shell handles interactive mode for sta-agent.
type Shell struct {
	rl  *readline.Instance
	out io.Writer

	// mu guards the attachment; commands hold it while they run.
	mu      sync.Mutex
	station Station
	radio   Radio
}

// New creates a shell reading from the terminal. Attach must be called
// before Run.
func New() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sta> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := newShell(nil, nil, rl.Stdout())
	s.rl = rl
	return s, nil
}

// Attach sets the station and radio the commands operate on. It may be
// called again while Run is active, e.g. after a restart.
func (s *Shell) Attach(st Station, radio Radio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.station = st
	s.radio = radio
}

// Close stops a pending Readline.
func (s *Shell) Close() error {
	return s.rl.Close()
}

func newShell(st Station, radio Radio, out io.Writer) *Shell {
	return &Shell{station: st, radio: radio, out: out}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if quit := s.Execute(line); quit {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the shell should exit.
func (s *Shell) Execute(line string) (quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "status", "s":
		s.cmdStatus()
	case "aps", "scan":
		s.cmdAPs()
	case "stats":
		s.cmdStats(args)
	case "drop":
		s.cmdDrop()
	case "reject":
		s.cmdReject(args)
	case "accept":
		s.cmdAccept(args)
	case "power":
		s.cmdPower(args)
	case "hide":
		s.cmdHide(args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Station Commands:
  Station:
    status                  - Show agent state and current access point
    stats [json]            - Show agent and MLME counters

  Environment:
    aps                     - List access points, strongest first
    drop                    - Simulate beacon loss on the current link
    reject auth|assoc <ap>  - Refuse authentication or association
    accept <ap>             - Clear both refusals
    power <ap> <dBm>        - Change received signal strength
    hide <ap>               - Remove an access point from the environment

  General:
    help                    - Show this help
    quit                    - Exit`)
}

func formatBSS(bss mlme.BSSDescription) string {
	return fmt.Sprintf("%s %-12q ch %-3d %6.1f dBm", bss.BSSID, bss.SSID, bss.Channel, bss.RxPower)
}

func (s *Shell) cmdStatus() {
	fmt.Fprintf(s.out, "Station:    %s\n", s.station.Address())
	fmt.Fprintf(s.out, "Session:    %s\n", s.station.SessionID())
	fmt.Fprintf(s.out, "State:      %s\n", s.station.State())

	if cur, ok := s.station.Current(); ok {
		fmt.Fprintf(s.out, "Connected:  %s\n", formatBSS(cur))
	} else if tgt, ok := s.station.Target(); ok {
		fmt.Fprintf(s.out, "Joining:    %s\n", formatBSS(tgt))
	}
	if addr, ok := s.radio.Associated(); ok {
		fmt.Fprintf(s.out, "MLME assoc: %s\n", addr)
	}
}

func (s *Shell) cmdAPs() {
	env := s.radio.Environment()
	if len(env.APs) == 0 {
		fmt.Fprintln(s.out, "No access points in range")
		return
	}

	flags := make(map[mlme.MACAddress]sim.AP, len(env.APs))
	list := make([]mlme.BSSDescription, 0, len(env.APs))
	for _, ap := range env.APs {
		flags[ap.BSS.BSSID] = ap
		list = append(list, ap.BSS)
	}
	cur, connected := s.station.Current()

	for _, bss := range selection.Rank(list) {
		marker := " "
		if connected && bss.BSSID == cur.BSSID {
			marker = "*"
		}
		var notes []string
		if flags[bss.BSSID].RejectAuth {
			notes = append(notes, "rejects auth")
		}
		if flags[bss.BSSID].RejectAssoc {
			notes = append(notes, "rejects assoc")
		}
		line := fmt.Sprintf("%s %s", marker, formatBSS(bss))
		if len(notes) > 0 {
			line += "  (" + strings.Join(notes, ", ") + ")"
		}
		fmt.Fprintln(s.out, line)
	}
}

func (s *Shell) cmdStats(args []string) {
	as := s.station.Stats()
	ms := s.radio.Stats()

	if len(args) > 0 && strings.EqualFold(args[0], "json") {
		data, err := json.MarshalIndent(struct {
			Agent agent.Stats `json:"agent"`
			MLME  sim.Stats   `json:"mlme"`
		}{as, ms}, "", "  ")
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
		fmt.Fprintln(s.out, string(data))
		return
	}

	fmt.Fprintln(s.out, "Agent:")
	fmt.Fprintf(s.out, "  Scans:          %d (%d empty)\n", as.Scans, as.EmptyScans)
	fmt.Fprintf(s.out, "  Authenticate:   %d (%d failed)\n", as.AuthAttempts, as.AuthFailures)
	fmt.Fprintf(s.out, "  Associate:      %d (%d failed)\n", as.AssocAttempts, as.AssocFailures)
	fmt.Fprintf(s.out, "  Connects:       %d\n", as.Connects)
	fmt.Fprintf(s.out, "  Link losses:    %d\n", as.LinkLosses)
	fmt.Fprintf(s.out, "  Stale confirms: %d\n", as.StaleConfirms)
	fmt.Fprintln(s.out, "MLME:")
	fmt.Fprintf(s.out, "  Scans:          %d\n", ms.Scans)
	fmt.Fprintf(s.out, "  Authenticate:   %d\n", ms.Authenticate)
	fmt.Fprintf(s.out, "  Associate:      %d\n", ms.Associate)
	fmt.Fprintf(s.out, "  Link drops:     %d\n", ms.LinkDrops)
}

func (s *Shell) cmdDrop() {
	addr, ok := s.radio.Associated()
	if !ok {
		fmt.Fprintln(s.out, "Not associated")
		return
	}
	s.radio.DropLink()
	fmt.Fprintf(s.out, "Dropped link to %s\n", addr)
}

func (s *Shell) parseAP(arg string) (mlme.MACAddress, bool) {
	addr, err := mlme.ParseMAC(arg)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid BSSID %q: %v\n", arg, err)
		return mlme.MACAddress{}, false
	}
	return addr, true
}

func (s *Shell) cmdReject(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "Usage: reject auth|assoc <bssid>")
		return
	}
	addr, ok := s.parseAP(args[1])
	if !ok {
		return
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "auth":
		err = s.radio.SetRejectAuth(addr, true)
	case "assoc":
		err = s.radio.SetRejectAssoc(addr, true)
	default:
		fmt.Fprintln(s.out, "Usage: reject auth|assoc <bssid>")
		return
	}
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s now rejects %s\n", addr, strings.ToLower(args[0]))
}

func (s *Shell) cmdAccept(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: accept <bssid>")
		return
	}
	addr, ok := s.parseAP(args[0])
	if !ok {
		return
	}
	if err := s.radio.SetRejectAuth(addr, false); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if err := s.radio.SetRejectAssoc(addr, false); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s accepts joins\n", addr)
}

func (s *Shell) cmdPower(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "Usage: power <bssid> <dBm>")
		return
	}
	addr, ok := s.parseAP(args[0])
	if !ok {
		return
	}
	dbm, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid power: %s\n", args[1])
		return
	}

	env := s.radio.Environment()
	for i := range env.APs {
		if env.APs[i].BSS.BSSID == addr {
			env.APs[i].BSS.RxPower = dbm
			s.radio.SetEnvironment(env)
			fmt.Fprintf(s.out, "%s now at %.1f dBm\n", addr, dbm)
			return
		}
	}
	fmt.Fprintf(s.out, "Error: %v: %s\n", sim.ErrUnknownAP, addr)
}

func (s *Shell) cmdHide(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: hide <bssid>")
		return
	}
	addr, ok := s.parseAP(args[0])
	if !ok {
		return
	}

	env := s.radio.Environment()
	kept := env.APs[:0]
	for _, ap := range env.APs {
		if ap.BSS.BSSID != addr {
			kept = append(kept, ap)
		}
	}
	if len(kept) == len(env.APs) {
		fmt.Fprintf(s.out, "Error: %v: %s\n", sim.ErrUnknownAP, addr)
		return
	}
	env.APs = kept
	s.radio.SetEnvironment(env)
	fmt.Fprintf(s.out, "%s removed\n", addr)
}
