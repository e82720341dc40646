// Command sta-agent runs the station connection agent against a simulated
// management entity.
//
// The agent scans, joins the strongest access point, and rescans whenever
// a join fails or the link is lost. The radio environment comes from the
// configuration file and can be changed at runtime in interactive mode.
//
// Usage:
//
//	sta-agent [flags]
//
// Flags:
//
//	-config string        Configuration file path
//	-address string       Station address (overrides config)
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  Write a CBOR capture of frames, primitives and states
//	-state-file string    Persist connection history across runs
//	-continue-on-desync   Log sequence errors instead of stopping
//	-restart              Start a new session with backoff when the station halts
//	-max-restarts int     Restart limit, 0 for unlimited
//	-interactive          Start the interactive shell
//
// Examples:
//
//	# Run with the access points from a config file
//	sta-agent -config station.yaml
//
//	# Interactive session with a capture for sta-log
//	sta-agent -config station.yaml -interactive -protocol-log run.stalog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stamgmt/stamgmt-go/cmd/sta-agent/interactive"
	"github.com/stamgmt/stamgmt-go/pkg/agent"
	"github.com/stamgmt/stamgmt-go/pkg/config"
	"github.com/stamgmt/stamgmt-go/pkg/log"
	"github.com/stamgmt/stamgmt-go/pkg/mlme"
	"github.com/stamgmt/stamgmt-go/pkg/persistence"
	"github.com/stamgmt/stamgmt-go/pkg/restart"
	"github.com/stamgmt/stamgmt-go/pkg/sim"
	"github.com/stamgmt/stamgmt-go/pkg/station"
)

// Flags holds the command-line settings.
type Flags struct {
	ConfigFile       string
	Address          string
	LogLevel         string
	ProtocolLog      string
	StateFile        string
	ContinueOnDesync bool
	Restart          bool
	MaxRestarts      int
	Interactive      bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.Address, "address", "", "Station address (overrides config)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Write a CBOR capture of frames, primitives and states")
	flag.StringVar(&flags.StateFile, "state-file", "", "Persist connection history across runs")
	flag.BoolVar(&flags.ContinueOnDesync, "continue-on-desync", false, "Log sequence errors instead of stopping")
	flag.BoolVar(&flags.Restart, "restart", false, "Start a new session with backoff when the station halts")
	flag.IntVar(&flags.MaxRestarts, "max-restarts", 0, "Restart limit, 0 for unlimited")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the interactive shell")
}

func main() {
	flag.Parse()

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(f Flags) (*config.Config, error) {
	cfg := config.Default()
	if f.ConfigFile != "" {
		loaded, err := config.Load(f.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.Address != "" {
		cfg.Station.Address = f.Address
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.ProtocolLog != "" {
		cfg.Log.ProtocolLog = f.ProtocolLog
	}
	if f.StateFile != "" {
		cfg.Station.StateFile = f.StateFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// protocolLogger combines the capture file with debug console output. The
// returned close function is never nil.
func protocolLogger(path string, logger *slog.Logger) (log.Logger, func() error, error) {
	var loggers []log.Logger
	closeFn := func() error { return nil }

	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, closeFn, fmt.Errorf("open protocol log: %w", err)
		}
		loggers = append(loggers, fl)
		closeFn = fl.Close
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		loggers = append(loggers, log.NewSlogAdapter(logger.With("component", "protocol")))
	}

	if len(loggers) == 0 {
		return nil, closeFn, nil
	}
	return log.NewMultiLogger(loggers...), closeFn, nil
}

func run(f Flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var shell *interactive.Shell
	var out io.Writer = os.Stdout

	// The shell is created before the station so log output goes through
	// readline and does not overwrite the prompt.
	if f.Interactive {
		shell, err = interactive.New()
		if err != nil {
			return err
		}
		defer shell.Close()
		out = shell.Stdout()
	}

	logger, err := newLogger(out, cfg.Log.Level)
	if err != nil {
		return err
	}

	addr, err := cfg.StationAddress()
	if err != nil {
		return err
	}
	env, err := cfg.SimEnvironment()
	if err != nil {
		return err
	}

	plog, closeLog, err := protocolLogger(cfg.Log.ProtocolLog, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	stCfg := station.Config{
		Address:          addr,
		Agent:            cfg.AgentConfig(),
		Logger:           logger,
		ProtocolLog:      plog,
		ContinueOnDesync: f.ContinueOnDesync,
	}
	if cfg.Station.StateFile != "" {
		stCfg.StateStore = persistence.NewStateStore(cfg.Station.StateFile)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	var radio *sim.MLME
	start := func(ctx context.Context, attempt int) (restart.Session, error) {
		// A restarted session keeps the environment edited in the shell.
		if radio != nil {
			env = radio.Environment()
		}
		st, r, err := station.Simulate(ctx, stCfg, env)
		if err != nil {
			return nil, err
		}
		radio = r

		if prev := st.PreviousConnection(); prev != nil && attempt == 0 {
			logger.Info("previous connection",
				"bssid", prev.BSSID,
				"ssid", prev.SSID,
				"at", prev.ConnectedAt)
		}
		st.OnStateChange(func(oldState, newState agent.State) {
			fmt.Fprintf(out, "[STATE] %s -> %s\n", oldState, newState)
		})
		st.OnConnected(func(bss mlme.BSSDescription) {
			fmt.Fprintf(out, "[EVENT] Connected to %s (%q, channel %d, %.1f dBm)\n",
				bss.BSSID, bss.SSID, bss.Channel, bss.RxPower)
		})

		if shell != nil {
			shell.Attach(st, r)
			if attempt == 0 {
				go shell.Run(ctx, cancel)
			}
		}

		logger.Info("station agent started",
			"address", addr.String(),
			"session", st.SessionID(),
			"access_points", len(env.APs))
		return &session{Station: st, logger: logger}, nil
	}

	sup := restart.New(start, restart.Config{
		Backoff:     restart.DefaultBackoffConfig(),
		Retry:       func(err error) bool { return f.Restart && station.Restartable(err) },
		MaxRestarts: f.MaxRestarts,
		Logger:      logger.With("component", "restart"),
	})
	sup.OnRestarting(func(attempt int, delay time.Duration, cause error) {
		fmt.Fprintf(out, "[EVENT] Station halted (%v), restart %d in %s\n", cause, attempt, delay.Round(time.Millisecond))
	})

	err = sup.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, station.ErrClosed) {
		return nil
	}
	return err
}

// session logs the station's counters when its run ends.
type session struct {
	*station.Station
	logger *slog.Logger
}

func (s *session) Run(ctx context.Context) error {
	err := s.Station.Run(ctx)
	stats := s.Stats()
	s.logger.Info("station agent stopped",
		"session", s.SessionID(),
		"state", s.State().String(),
		"connects", stats.Connects,
		"link_losses", stats.LinkLosses,
		"error", err)
	return err
}
