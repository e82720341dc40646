package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stamgmt/stamgmt-go/pkg/agent"
	"github.com/stamgmt/stamgmt-go/pkg/link"
	"github.com/stamgmt/stamgmt-go/pkg/log"
	"github.com/stamgmt/stamgmt-go/pkg/mlme"
	"github.com/stamgmt/stamgmt-go/pkg/notify"
	"github.com/stamgmt/stamgmt-go/pkg/persistence"
)

// Station errors.
var (
	// ErrHalted is wrapped with the agent's desync error when Run stops.
	ErrHalted = errors.New("station halted")

	ErrClosed         = errors.New("station closed")
	ErrLinkClosed     = errors.New("MLME link closed")
	ErrAlreadyRunning = errors.New("station already running")
	ErrNoLink         = errors.New("no MLME link configured")
	ErrNoBoard        = errors.New("no notification board configured")
)

// Restartable reports whether err ended Run in a way a fresh station may
// recover from: a desync halt or a failed MLME link.
func Restartable(err error) bool {
	return errors.Is(err, ErrHalted) || errors.Is(err, ErrLinkClosed)
}

// notificationBuffer bounds notifications queued for the event loop.
const notificationBuffer = 32

// Config configures a station.
type Config struct {
	// Address is the local station address.
	Address mlme.MACAddress

	// Agent holds the timing parameters.
	Agent agent.Config

	// MLME is the byte stream to the management entity.
	MLME io.ReadWriteCloser

	// Board delivers link notifications.
	Board *notify.Board

	// Logger receives operational messages. Nil discards.
	Logger *slog.Logger

	// ProtocolLog captures frames, primitives and state changes. Optional.
	ProtocolLog log.Logger

	// StateStore persists connection history. Optional.
	StateStore *persistence.StateStore

	// ContinueOnDesync logs desync errors instead of halting.
	ContinueOnDesync bool
}

// Station owns the agent, its link and its board subscriptions.
type Station struct {
	cfg       Config
	sessionID string
	logger    *slog.Logger

	agent *agent.Agent
	conn  *link.Conn
	notes chan notify.Notification

	unsubscribe []func()

	stateMu  sync.Mutex
	state    *persistence.StationState
	previous *persistence.ConnectionRecord

	cbMu        sync.RWMutex
	onConnected func(bss mlme.BSSDescription)

	running   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// New wires a station. Nothing is sent until Run.
func New(cfg Config) (*Station, error) {
	if cfg.MLME == nil {
		return nil, ErrNoLink
	}
	if cfg.Board == nil {
		return nil, ErrNoBoard
	}
	if cfg.Address.IsZero() {
		return nil, fmt.Errorf("station address: %w", mlme.ErrInvalidAddress)
	}
	if err := cfg.Agent.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Station{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		notes:     make(chan notify.Notification, notificationBuffer),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	s.logger = logger.With("station", cfg.Address.String(), "session", s.sessionID)

	if err := s.loadState(); err != nil {
		return nil, err
	}

	s.conn = link.NewConn(cfg.MLME, link.Config{
		Logger:      s.logger,
		ProtocolLog: cfg.ProtocolLog,
		SessionID:   s.sessionID,
		Station:     cfg.Address.String(),
	})

	a, err := agent.New(cfg.Agent, s.conn)
	if err != nil {
		_ = s.conn.Close()
		return nil, fmt.Errorf("create agent: %w", err)
	}
	a.SetLogger(s.logger)
	a.SetProtocolLogger(cfg.ProtocolLog, s.sessionID, cfg.Address.String())
	a.OnConnected(s.handleConnected)
	s.agent = a

	s.unsubscribe = []func(){
		cfg.Board.Subscribe(notify.CategoryLinkLost, s.enqueue),
		cfg.Board.Subscribe(notify.CategoryAssociated, s.enqueue),
	}
	return s, nil
}

// SessionID identifies this run in the protocol log.
func (s *Station) SessionID() string { return s.sessionID }

// Address returns the station address.
func (s *Station) Address() mlme.MACAddress { return s.cfg.Address }

// State returns the agent state.
func (s *Station) State() agent.State { return s.agent.State() }

// Stats returns the agent counters.
func (s *Station) Stats() agent.Stats { return s.agent.Stats() }

// Current returns the AP the station is connected to.
func (s *Station) Current() (mlme.BSSDescription, bool) { return s.agent.Current() }

// Target returns the AP being joined.
func (s *Station) Target() (mlme.BSSDescription, bool) { return s.agent.Target() }

// PreviousConnection returns the last association recorded by an earlier
// run, or nil.
func (s *Station) PreviousConnection() *persistence.ConnectionRecord {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.previous
}

// OnStateChange sets a callback for agent state transitions. It runs on
// the event loop goroutine.
func (s *Station) OnStateChange(fn func(oldState, newState agent.State)) {
	s.agent.OnStateChange(fn)
}

// OnConnected sets a callback invoked after each successful association.
func (s *Station) OnConnected(fn func(bss mlme.BSSDescription)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onConnected = fn
}

// Run starts the agent and processes events until ctx is done, the station
// is closed, the link fails or the agent desynchronizes.
func (s *Station) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.stopped)

	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	s.recordRun()
	s.logger.Info("station starting", "address", s.cfg.Address.String())
	if err := s.agent.Start(); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}

	confirms := s.conn.Confirms()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.done:
			return ErrClosed

		case c, ok := <-confirms:
			if !ok {
				return s.stopReason(ctx, ErrLinkClosed)
			}
			if err := s.handleConfirm(c); err != nil {
				return s.stopReason(ctx, err)
			}

		case n := <-s.notes:
			if err := s.handleNotification(n); err != nil {
				return s.stopReason(ctx, err)
			}
		}
	}
}

// stopReason prefers a local close or cancellation over the link error it
// caused.
func (s *Station) stopReason(ctx context.Context, err error) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrLinkClosed) {
		if linkErr := s.conn.Err(); linkErr != nil {
			return fmt.Errorf("%w: %w", ErrLinkClosed, linkErr)
		}
	}
	return err
}

// Close unsubscribes from the board and closes the link. A running Run
// returns ErrClosed.
func (s *Station) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		for _, unsub := range s.unsubscribe {
			unsub()
		}
		err = s.conn.Close()
	})
	return err
}

func (s *Station) handleConfirm(c mlme.Confirm) error {
	err := s.agent.HandleConfirm(c)
	if err == nil {
		return nil
	}
	if errors.Is(err, agent.ErrDesync) {
		if s.cfg.ContinueOnDesync {
			s.logger.Warn("dropping confirm after desync", "error", err)
			// A desync on the outstanding request leaves nothing awaited.
			if _, seq := s.agent.Outstanding(); seq == 0 && s.agent.State() != agent.StateConnected {
				return s.agent.Rescan()
			}
			return nil
		}
		s.logger.Error("agent desynchronized, halting", "error", err)
		return fmt.Errorf("%w: %w", ErrHalted, err)
	}
	return err
}

func (s *Station) handleNotification(n notify.Notification) error {
	if n.Station != "" && n.Station != s.cfg.Address.String() {
		return nil
	}
	switch n.Category {
	case notify.CategoryLinkLost:
		s.recordLinkLoss()
		return s.agent.HandleLinkLost()
	case notify.CategoryAssociated:
		s.agent.HandleAssociated()
	}
	return nil
}

// enqueue runs on the publisher's goroutine.
func (s *Station) enqueue(n notify.Notification) {
	select {
	case s.notes <- n:
	case <-s.done:
	case <-s.stopped:
	}
}

func (s *Station) handleConnected(bss mlme.BSSDescription) {
	s.recordConnect(bss)

	s.cbMu.RLock()
	fn := s.onConnected
	s.cbMu.RUnlock()
	if fn != nil {
		fn(bss)
	}
}

func (s *Station) loadState() error {
	if s.cfg.StateStore == nil {
		return nil
	}
	st, err := s.cfg.StateStore.Load()
	if err != nil {
		return fmt.Errorf("load station state: %w", err)
	}
	if st == nil {
		st = &persistence.StationState{}
	}
	if st.LastConnected != nil {
		s.previous = st.LastConnected
		s.logger.Info("last connected",
			"bssid", st.LastConnected.BSSID, "ssid", st.LastConnected.SSID,
			"at", st.LastConnected.ConnectedAt.Format(time.RFC3339))
	}
	st.Station = s.cfg.Address.String()
	s.state = st
	return nil
}

func (s *Station) recordRun() {
	s.updateState(func(st *persistence.StationState) { st.Totals.Runs++ })
}

func (s *Station) recordLinkLoss() {
	s.updateState(func(st *persistence.StationState) { st.Totals.LinkLosses++ })
}

func (s *Station) recordConnect(bss mlme.BSSDescription) {
	s.updateState(func(st *persistence.StationState) {
		st.Totals.Connects++
		st.LastConnected = &persistence.ConnectionRecord{
			BSSID:       bss.BSSID.String(),
			SSID:        bss.SSID,
			Channel:     bss.Channel,
			RxPower:     bss.RxPower,
			ConnectedAt: time.Now(),
		}
	})
}

// updateState applies fn and saves. Save failures are logged; they never
// stop the station.
func (s *Station) updateState(fn func(st *persistence.StationState)) {
	if s.cfg.StateStore == nil {
		return
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	fn(s.state)
	if err := s.cfg.StateStore.Save(s.state); err != nil {
		s.logger.Warn("failed to save station state", "path", s.cfg.StateStore.Path(), "error", err)
	}
}
