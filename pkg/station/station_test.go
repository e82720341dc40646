package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stamgmt/stamgmt-go/pkg/agent"
	"github.com/stamgmt/stamgmt-go/pkg/link"
	"github.com/stamgmt/stamgmt-go/pkg/log"
	"github.com/stamgmt/stamgmt-go/pkg/mlme"
	"github.com/stamgmt/stamgmt-go/pkg/notify"
	"github.com/stamgmt/stamgmt-go/pkg/persistence"
	"github.com/stamgmt/stamgmt-go/pkg/sim"
)

const waitTimeout = 5 * time.Second

var (
	staAddr = mlme.MustParseMAC("02:00:00:00:00:01")
	apA     = mlme.MustParseMAC("02:00:00:00:00:0a")
	apB     = mlme.MustParseMAC("02:00:00:00:00:0b")
)

var agentConfig = agent.Config{
	ProbeDelay:            100 * time.Millisecond,
	MinChannelTime:        150 * time.Millisecond,
	MaxChannelTime:        300 * time.Millisecond,
	AuthenticationTimeout: 5 * time.Second,
	AssociationTimeout:    5 * time.Second,
}

func twoAPs() sim.Environment {
	return sim.Environment{
		ScanDelay: time.Millisecond,
		APs: []sim.AP{
			{BSS: mlme.BSSDescription{BSSID: apA, SSID: "alpha", Channel: 1, RxPower: -70}},
			{BSS: mlme.BSSDescription{BSSID: apB, SSID: "bravo", Channel: 11, RxPower: -40}},
		},
	}
}

type harness struct {
	st        *Station
	mlme      *sim.MLME
	connected chan mlme.BSSDescription
	runErr    chan error
	cancel    context.CancelFunc
}

func startSimulated(t *testing.T, cfg Config, env sim.Environment) *harness {
	t.Helper()
	if cfg.Address.IsZero() {
		cfg.Address = staAddr
	}
	if cfg.Agent == (agent.Config{}) {
		cfg.Agent = agentConfig
	}

	ctx, cancel := context.WithCancel(context.Background())
	st, m, err := Simulate(ctx, cfg, env)
	require.NoError(t, err)

	h := &harness{
		st:        st,
		mlme:      m,
		connected: make(chan mlme.BSSDescription, 16),
		runErr:    make(chan error, 1),
		cancel:    cancel,
	}
	st.OnConnected(func(bss mlme.BSSDescription) { h.connected <- bss })

	go func() { h.runErr <- st.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = st.Close()
	})
	return h
}

func (h *harness) waitConnected(t *testing.T) mlme.BSSDescription {
	t.Helper()
	select {
	case bss := <-h.connected:
		return bss
	case err := <-h.runErr:
		t.Fatalf("station stopped before connecting: %v", err)
	case <-time.After(waitTimeout):
		t.Fatalf("timeout waiting for connection (state %s)", h.st.State())
	}
	return mlme.BSSDescription{}
}

func (h *harness) waitRunErr(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.runErr:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for Run to return")
		return nil
	}
}

func TestNewValidation(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	board := notify.NewBoard(nil)

	_, err := New(Config{Address: staAddr, Agent: agentConfig, Board: board})
	assert.ErrorIs(t, err, ErrNoLink)

	_, err = New(Config{Address: staAddr, Agent: agentConfig, MLME: a})
	assert.ErrorIs(t, err, ErrNoBoard)

	_, err = New(Config{Agent: agentConfig, MLME: a, Board: board})
	assert.ErrorIs(t, err, mlme.ErrInvalidAddress)

	_, err = New(Config{Address: staAddr, MLME: a, Board: board})
	assert.ErrorIs(t, err, agent.ErrInvalidConfig)
}

func TestConnectsToStrongest(t *testing.T) {
	h := startSimulated(t, Config{}, twoAPs())

	bss := h.waitConnected(t)
	assert.Equal(t, apB, bss.BSSID)
	assert.Equal(t, agent.StateConnected, h.st.State())

	cur, ok := h.st.Current()
	require.True(t, ok)
	assert.Equal(t, "bravo", cur.SSID)

	addr, ok := h.mlme.Associated()
	require.True(t, ok)
	assert.Equal(t, apB, addr)

	stats := h.st.Stats()
	assert.Equal(t, 1, stats.Scans)
	assert.Equal(t, 1, stats.Connects)
}

func TestReconnectsAfterLinkLoss(t *testing.T) {
	h := startSimulated(t, Config{}, twoAPs())
	h.waitConnected(t)

	// The strongest AP disappears while connected.
	env := twoAPs()
	env.APs = env.APs[:1]
	h.mlme.SetEnvironment(env)
	h.mlme.DropLink()

	bss := h.waitConnected(t)
	assert.Equal(t, apA, bss.BSSID)

	stats := h.st.Stats()
	assert.Equal(t, 1, stats.LinkLosses)
	assert.Equal(t, 2, stats.Connects)
}

func TestKeepsScanningUntilAPAppears(t *testing.T) {
	h := startSimulated(t, Config{}, sim.Environment{ScanDelay: time.Millisecond})

	require.Eventually(t, func() bool { return h.st.Stats().EmptyScans >= 3 }, waitTimeout, time.Millisecond)
	assert.Equal(t, agent.StateScanning, h.st.State())

	h.mlme.SetEnvironment(twoAPs())
	bss := h.waitConnected(t)
	assert.Equal(t, apB, bss.BSSID)
}

func TestRetriesRejectedAuthentication(t *testing.T) {
	env := twoAPs()
	env.APs[1].RejectAuth = true
	h := startSimulated(t, Config{}, env)

	require.Eventually(t, func() bool { return h.st.Stats().AuthFailures >= 2 }, waitTimeout, time.Millisecond)
	_, connected := h.st.Current()
	assert.False(t, connected)

	require.NoError(t, h.mlme.SetRejectAuth(apB, false))
	bss := h.waitConnected(t)
	assert.Equal(t, apB, bss.BSSID)
}

func TestIgnoresOtherStations(t *testing.T) {
	board := notify.NewBoard(nil)
	h := startSimulated(t, Config{Board: board}, twoAPs())
	h.waitConnected(t)

	board.Publish(notify.Notification{Category: notify.CategoryLinkLost, Station: "02:00:00:00:00:99"})
	board.Publish(notify.Notification{Category: notify.CategoryAssociated, Station: staAddr.String()})

	// The simulator also published Associated once on connect.
	require.Eventually(t, func() bool { return h.st.Stats().Associations >= 2 }, waitTimeout, time.Millisecond)
	assert.Zero(t, h.st.Stats().LinkLosses)
	assert.Equal(t, agent.StateConnected, h.st.State())
}

func TestPersistsConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := persistence.NewStateStore(path)

	h := startSimulated(t, Config{StateStore: store}, twoAPs())
	assert.Nil(t, h.st.PreviousConnection())
	h.waitConnected(t)

	saved, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, staAddr.String(), saved.Station)
	require.NotNil(t, saved.LastConnected)
	assert.Equal(t, apB.String(), saved.LastConnected.BSSID)
	assert.Equal(t, 1, saved.Totals.Runs)
	assert.Equal(t, 1, saved.Totals.Connects)

	h.cancel()
	require.ErrorIs(t, h.waitRunErr(t), context.Canceled)
	require.NoError(t, h.st.Close())

	// A second run sees the previous connection.
	h2 := startSimulated(t, Config{StateStore: persistence.NewStateStore(path)}, twoAPs())
	prev := h2.st.PreviousConnection()
	require.NotNil(t, prev)
	assert.Equal(t, "bravo", prev.SSID)
	h2.waitConnected(t)

	saved, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Totals.Runs)
	assert.Equal(t, 2, saved.Totals.Connects)
}

func TestProtocolCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.stalog")
	fl, err := log.NewFileLogger(path)
	require.NoError(t, err)

	h := startSimulated(t, Config{ProtocolLog: fl}, twoAPs())
	h.waitConnected(t)
	h.cancel()
	h.waitRunErr(t)
	require.NoError(t, h.st.Close())
	require.NoError(t, fl.Close())

	r, err := log.NewFilteredReader(path, log.Filter{SessionID: h.st.SessionID()})
	require.NoError(t, err)
	defer r.Close()
	events, err := r.ReadAll()
	require.NoError(t, err)

	var frames, primitives, states int
	var last string
	for _, ev := range events {
		assert.Equal(t, staAddr.String(), ev.Station)
		switch {
		case ev.Frame != nil:
			frames++
		case ev.Primitive != nil:
			primitives++
		case ev.StateChange != nil:
			states++
			last = ev.StateChange.NewState
		}
	}
	assert.Equal(t, 6, frames, "3 requests and 3 confirms on the wire")
	assert.Equal(t, 6, primitives)
	assert.Equal(t, 4, states)
	assert.Equal(t, "CONNECTED", last)
}

func TestCloseStopsRun(t *testing.T) {
	h := startSimulated(t, Config{}, twoAPs())
	h.waitConnected(t)

	assert.ErrorIs(t, h.st.Run(context.Background()), ErrAlreadyRunning)

	require.NoError(t, h.st.Close())
	assert.ErrorIs(t, h.waitRunErr(t), ErrClosed)
	assert.Zero(t, h.st.cfg.Board.Subscribers(notify.CategoryLinkLost))
}

// manualPeer drives a station with hand-written confirmations.
func manualPeer(t *testing.T, cfg Config) (*Station, *link.PeerConn) {
	t.Helper()
	a, b := net.Pipe()
	cfg.Address = staAddr
	cfg.Agent = agentConfig
	cfg.MLME = a
	cfg.Board = notify.NewBoard(nil)

	st, err := New(cfg)
	require.NoError(t, err)
	peer := link.NewPeerConn(b, link.Config{})
	t.Cleanup(func() {
		_ = peer.Close()
		_ = st.Close()
	})
	return st, peer
}

func TestHaltsOnDesync(t *testing.T) {
	st, peer := manualPeer(t, Config{})

	runErr := make(chan error, 1)
	go func() { runErr <- st.Run(context.Background()) }()

	req, err := peer.ReadRequest()
	require.NoError(t, err)
	require.Equal(t, mlme.KindScan, req.Kind())

	// Wrong kind for the outstanding sequence.
	require.NoError(t, peer.WriteConfirm(&mlme.AuthenticateConfirm{
		Seq: req.Sequence(), Result: mlme.ResultSuccess, Address: apA,
	}))

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, ErrHalted)
		assert.ErrorIs(t, err, agent.ErrDesync)
	case <-time.After(waitTimeout):
		t.Fatal("station did not halt")
	}
	assert.Equal(t, agent.StateScanning, st.State())
}

func TestContinueOnDesync(t *testing.T) {
	st, peer := manualPeer(t, Config{ContinueOnDesync: true})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- st.Run(ctx) }()

	req, err := peer.ReadRequest()
	require.NoError(t, err)

	require.NoError(t, peer.WriteConfirm(&mlme.AuthenticateConfirm{
		Seq: req.Sequence(), Result: mlme.ResultSuccess, Address: apA,
	}))
	require.NoError(t, peer.WriteConfirm(&mlme.ScanConfirm{Seq: req.Sequence(), Result: mlme.ResultSuccess}))

	// The empty scan triggers a rescan, proving the loop survived.
	next, err := peer.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, mlme.KindScan, next.Kind())
	assert.Greater(t, next.Sequence(), req.Sequence())

	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after cancel")
	}
}

func TestContinueOnDesyncRescansAfterConsumedRequest(t *testing.T) {
	st, peer := manualPeer(t, Config{ContinueOnDesync: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- st.Run(ctx) }()

	req, err := peer.ReadRequest()
	require.NoError(t, err)
	require.Equal(t, mlme.KindScan, req.Kind())

	// The strongest candidate has no address, so the scan is answered but
	// unusable.
	require.NoError(t, peer.WriteConfirm(&mlme.ScanConfirm{
		Seq:     req.Sequence(),
		Result:  mlme.ResultSuccess,
		BSSList: []mlme.BSSDescription{{SSID: "ghost", RxPower: -20}},
	}))

	next, err := peer.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, mlme.KindScan, next.Kind())
	assert.Greater(t, next.Sequence(), req.Sequence())
	assert.Equal(t, agent.StateScanning, st.State())

	// The fresh scan proceeds normally.
	require.NoError(t, peer.WriteConfirm(&mlme.ScanConfirm{
		Seq:     next.Sequence(),
		Result:  mlme.ResultSuccess,
		BSSList: []mlme.BSSDescription{{BSSID: apA, SSID: "alpha", RxPower: -50}},
	}))
	auth, err := peer.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, mlme.KindAuthenticate, auth.Kind())

	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLinkClosedByPeer(t *testing.T) {
	st, peer := manualPeer(t, Config{})

	runErr := make(chan error, 1)
	go func() { runErr <- st.Run(context.Background()) }()

	_, err := peer.ReadRequest()
	require.NoError(t, err)
	require.NoError(t, peer.Close())

	select {
	case err := <-runErr:
		assert.True(t, errors.Is(err, ErrLinkClosed), "got %v", err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after link close")
	}
}

func TestRestartable(t *testing.T) {
	assert.True(t, Restartable(fmt.Errorf("%w: %w", ErrHalted, agent.ErrDesync)))
	assert.True(t, Restartable(fmt.Errorf("%w: %w", ErrLinkClosed, io.ErrUnexpectedEOF)))
	assert.False(t, Restartable(ErrClosed))
	assert.False(t, Restartable(context.Canceled))
	assert.False(t, Restartable(nil))
}
