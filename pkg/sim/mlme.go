// Package sim provides a simulated management entity that answers the
// agent's requests from a configurable set of access points.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stamgmt/stamgmt-go/pkg/link"
	"github.com/stamgmt/stamgmt-go/pkg/mlme"
	"github.com/stamgmt/stamgmt-go/pkg/notify"
)

// ErrUnknownAP is returned when an operation names a BSSID that is not in
// the environment.
var ErrUnknownAP = errors.New("unknown access point")

// AP is one simulated access point.
type AP struct {
	BSS mlme.BSSDescription

	// RejectAuth makes authentication fail with ResultRefused.
	RejectAuth bool

	// RejectAssoc makes association fail with ResultRefused.
	RejectAssoc bool
}

// Environment is what the station can hear.
type Environment struct {
	APs []AP

	// ScanDelay is how long a scan takes before it is confirmed.
	ScanDelay time.Duration
}

func (e Environment) clone() Environment {
	out := e
	out.APs = append([]AP(nil), e.APs...)
	return out
}

func (e Environment) find(addr mlme.MACAddress) (int, bool) {
	for i, ap := range e.APs {
		if ap.BSS.BSSID == addr {
			return i, true
		}
	}
	return -1, false
}

// Stats counts requests served.
type Stats struct {
	Scans        int `json:"scans"`
	Authenticate int `json:"authenticate"`
	Associate    int `json:"associate"`
	LinkDrops    int `json:"link_drops"`
}

// MLME is a simulated management entity for one station.
type MLME struct {
	mu sync.Mutex

	env     Environment
	board   *notify.Board
	station string
	logger  *slog.Logger

	authenticated map[mlme.MACAddress]bool
	associated    mlme.MACAddress

	stats Stats
}

// New creates a simulator. Notifications are published on board for the
// given station address.
func New(env Environment, board *notify.Board, station string) *MLME {
	return &MLME{
		env:           env.clone(),
		board:         board,
		station:       station,
		logger:        slog.New(slog.DiscardHandler),
		authenticated: make(map[mlme.MACAddress]bool),
	}
}

// SetLogger sets the operational logger.
func (m *MLME) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m.logger = logger
}

// Environment returns a copy of the current environment.
func (m *MLME) Environment() Environment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.env.clone()
}

// SetEnvironment replaces the visible access points. Authentication state
// for APs that disappeared is forgotten.
func (m *MLME) SetEnvironment(env Environment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.env = env.clone()
	for addr := range m.authenticated {
		if _, ok := m.env.find(addr); !ok {
			delete(m.authenticated, addr)
		}
	}
}

// SetRejectAuth toggles authentication refusal for one AP.
func (m *MLME) SetRejectAuth(addr mlme.MACAddress, reject bool) error {
	return m.updateAP(addr, func(ap *AP) { ap.RejectAuth = reject })
}

// SetRejectAssoc toggles association refusal for one AP.
func (m *MLME) SetRejectAssoc(addr mlme.MACAddress, reject bool) error {
	return m.updateAP(addr, func(ap *AP) { ap.RejectAssoc = reject })
}

func (m *MLME) updateAP(addr mlme.MACAddress, fn func(ap *AP)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.env.find(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAP, addr)
	}
	fn(&m.env.APs[i])
	return nil
}

// Associated returns the AP the station is associated with.
func (m *MLME) Associated() (mlme.MACAddress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.associated, !m.associated.IsZero()
}

// Stats returns a snapshot of the request counters.
func (m *MLME) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// DropLink simulates beacon loss: the association is torn down and a
// link-lost notification is published.
func (m *MLME) DropLink() {
	m.mu.Lock()
	prev := m.associated
	m.associated = mlme.MACAddress{}
	clear(m.authenticated)
	m.stats.LinkDrops++
	m.logger.Info("beacon lost", "bssid", prev.String())
	m.mu.Unlock()

	m.publish(notify.CategoryLinkLost, prev)
}

// Handle answers one request. The confirm echoes the request's sequence.
func (m *MLME) Handle(req mlme.Request) mlme.Confirm {
	c, _ := m.handle(req)
	return c
}

func (m *MLME) handle(req mlme.Request) (conf mlme.Confirm, associated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch r := req.(type) {
	case *mlme.ScanRequest:
		m.stats.Scans++
		list := make([]mlme.BSSDescription, 0, len(m.env.APs))
		for _, ap := range m.env.APs {
			list = append(list, ap.BSS)
		}
		m.logger.Debug("scan", "seq", r.Seq, "found", len(list))
		return &mlme.ScanConfirm{Seq: r.Seq, Result: mlme.ResultSuccess, BSSList: list}, false

	case *mlme.AuthenticateRequest:
		m.stats.Authenticate++
		result := m.authenticateLocked(r.Address)
		m.logger.Debug("authenticate", "seq", r.Seq, "bssid", r.Address.String(), "result", result.String())
		return &mlme.AuthenticateConfirm{Seq: r.Seq, Result: result, Address: r.Address}, false

	case *mlme.AssociateRequest:
		m.stats.Associate++
		result := m.associateLocked(r.Address)
		m.logger.Debug("associate", "seq", r.Seq, "bssid", r.Address.String(), "result", result.String())
		return &mlme.AssociateConfirm{Seq: r.Seq, Result: result, Address: r.Address}, result.IsSuccess()
	}
	panic(fmt.Sprintf("sim: unhandled request type %T", req))
}

func (m *MLME) authenticateLocked(addr mlme.MACAddress) mlme.ResultCode {
	i, ok := m.env.find(addr)
	if !ok {
		return mlme.ResultTimeout
	}
	if m.env.APs[i].RejectAuth {
		delete(m.authenticated, addr)
		return mlme.ResultRefused
	}
	m.authenticated[addr] = true
	return mlme.ResultSuccess
}

func (m *MLME) associateLocked(addr mlme.MACAddress) mlme.ResultCode {
	i, ok := m.env.find(addr)
	if !ok {
		return mlme.ResultTimeout
	}
	if !m.authenticated[addr] || m.env.APs[i].RejectAssoc {
		return mlme.ResultRefused
	}
	m.associated = addr
	return mlme.ResultSuccess
}

// Serve answers requests from peer until ctx is cancelled or the station
// closes the link. It closes peer on return.
func (m *MLME) Serve(ctx context.Context, peer *link.PeerConn) error {
	stop := context.AfterFunc(ctx, func() { _ = peer.Close() })
	defer stop()
	defer peer.Close()

	for {
		req, err := peer.ReadRequest()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		if req.Kind() == mlme.KindScan {
			if err := m.scanDelay(ctx); err != nil {
				return nil
			}
		}

		conf, associated := m.handle(req)
		if err := peer.WriteConfirm(conf); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("write confirm: %w", err)
		}

		if associated {
			addr, _ := m.Associated()
			m.publish(notify.CategoryAssociated, addr)
		}
	}
}

func (m *MLME) scanDelay(ctx context.Context) error {
	m.mu.Lock()
	d := m.env.ScanDelay
	m.mu.Unlock()
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MLME) publish(cat notify.Category, addr mlme.MACAddress) {
	if m.board == nil {
		return
	}
	n := notify.Notification{Category: cat, Station: m.station}
	if !addr.IsZero() {
		n.Detail = addr.String()
	}
	m.board.Publish(n)
}
