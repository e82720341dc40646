package station

import (
	"context"
	"net"

	"github.com/stamgmt/stamgmt-go/pkg/link"
	"github.com/stamgmt/stamgmt-go/pkg/notify"
	"github.com/stamgmt/stamgmt-go/pkg/sim"
)

// Simulate creates a station whose MLME is an in-process simulator serving
// env. cfg.MLME is ignored; cfg.Board is created if nil. The simulator
// stops when ctx is done or the station is closed.
func Simulate(ctx context.Context, cfg Config, env sim.Environment) (*Station, *sim.MLME, error) {
	if cfg.Board == nil {
		cfg.Board = notify.NewBoard(cfg.Logger)
	}

	stationEnd, mlmeEnd := net.Pipe()
	cfg.MLME = stationEnd

	m := sim.New(env, cfg.Board, cfg.Address.String())
	if cfg.Logger != nil {
		m.SetLogger(cfg.Logger.With("component", "sim"))
	}

	st, err := New(cfg)
	if err != nil {
		_ = stationEnd.Close()
		_ = mlmeEnd.Close()
		return nil, nil, err
	}

	peer := link.NewPeerConn(mlmeEnd, link.Config{Logger: cfg.Logger})
	go func() {
		if err := m.Serve(ctx, peer); err != nil {
			st.logger.Error("simulated MLME stopped", "error", err)
		}
	}()
	return st, m, nil
}
