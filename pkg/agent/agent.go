package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stamgmt/stamgmt-go/pkg/log"
	"github.com/stamgmt/stamgmt-go/pkg/mlme"
	"github.com/stamgmt/stamgmt-go/pkg/selection"
)

// Agent errors.
var (
	// ErrDesync is wrapped by every error that indicates the agent and the
	// MLME disagree about which request is outstanding.
	ErrDesync = errors.New("agent out of sync with MLME")

	ErrNilConfirm        = fmt.Errorf("%w: nil confirm", ErrDesync)
	ErrUnexpectedConfirm = fmt.Errorf("%w: unexpected confirm", ErrDesync)
	ErrMissingResult     = fmt.Errorf("%w: confirm is missing result data", ErrDesync)

	ErrAlreadyStarted = errors.New("agent already started")
	ErrNilSink        = errors.New("request sink is nil")
)

// RequestSink delivers requests to the MLME. Send must not block waiting
// for the confirmation; confirmations come back through HandleConfirm.
type RequestSink interface {
	Send(req mlme.Request) error
}

// Agent is the station connection state machine.
type Agent struct {
	mu sync.RWMutex

	cfg  Config
	sink RequestSink

	logger    *slog.Logger
	protoLog  log.Logger
	sessionID string
	station   string

	state State

	// lastSeq is the sequence of the most recently issued request.
	lastSeq uint32

	// outstandingSeq is 0 when nothing is awaiting a confirm.
	outstandingSeq  uint32
	outstandingKind mlme.Kind

	// abandoned holds requests replaced before their confirm arrived,
	// oldest first. Only a confirm matching one of them is stale.
	abandoned []pendingRequest

	// target is the AP being authenticated or associated with.
	target    mlme.BSSDescription
	hasTarget bool

	// current is the AP we are connected to.
	current    mlme.BSSDescription
	hasCurrent bool

	stats Stats

	onStateChange func(oldState, newState State)
	onConnected   func(bss mlme.BSSDescription)
	onAssociated  func()
}

// maxAbandoned bounds how many unanswered requests are remembered. A late
// confirm for an evicted request is reported as desync.
const maxAbandoned = 32

type pendingRequest struct {
	seq  uint32
	kind mlme.Kind
}

// effects is what an event produced while the lock was held. It is applied
// after unlocking so callbacks and the sink may call back into accessors.
type effects struct {
	from, to  State
	reason    string
	target    string
	req       mlme.Request
	connected *mlme.BSSDescription
}

// New creates an agent in StateIdle. Nothing is sent until Start.
func New(cfg Config, sink RequestSink) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, ErrNilSink
	}
	return &Agent{
		cfg:      cfg,
		sink:     sink,
		logger:   slog.New(slog.DiscardHandler),
		protoLog: log.NoopLogger{},
		state:    StateIdle,
	}, nil
}

// SetLogger sets the operational logger. Pass nil to discard.
func (a *Agent) SetLogger(logger *slog.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a.logger = logger
}

// SetProtocolLogger configures protocol capture. sessionID and station are
// stamped on every event.
func (a *Agent) SetProtocolLogger(logger log.Logger, sessionID, station string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.protoLog = log.OrNoop(logger)
	a.sessionID = sessionID
	a.station = station
}

// OnStateChange sets a callback invoked after every state transition.
// Rescans that stay in SCANNING do not count as transitions.
func (a *Agent) OnStateChange(fn func(oldState, newState State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onStateChange = fn
}

// OnConnected sets a callback invoked when association succeeds.
func (a *Agent) OnConnected(fn func(bss mlme.BSSDescription)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onConnected = fn
}

// OnAssociated sets a callback for the informational associated
// notification.
func (a *Agent) OnAssociated(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onAssociated = fn
}

// Config returns the agent's configuration.
func (a *Agent) Config() Config {
	return a.cfg
}

// State returns the current state.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Stats returns a snapshot of the counters.
func (a *Agent) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// Target returns the AP currently being joined, if any.
func (a *Agent) Target() (mlme.BSSDescription, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.target, a.hasTarget
}

// Current returns the AP the station is connected to, if any.
func (a *Agent) Current() (mlme.BSSDescription, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current, a.hasCurrent
}

// Outstanding returns the kind and sequence of the request awaiting
// confirmation. The sequence is 0 if none is.
func (a *Agent) Outstanding() (mlme.Kind, uint32) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.outstandingKind, a.outstandingSeq
}

// Start leaves IDLE and sends the first scan request.
func (a *Agent) Start() error {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.logger.Info("starting up, sending scan request")
	fx := a.scanLocked("startup")
	a.mu.Unlock()

	return a.apply(fx)
}

// HandleConfirm processes one confirmation from the MLME.
//
// Recoverable failures (no AP, authentication or association refused,
// timeouts) are handled internally and return nil. A late confirm for a
// request abandoned by a rescan is stale: it is dropped and returns nil.
// An error wrapping ErrDesync means the confirm does not answer any request
// the agent is waiting for, or answers the outstanding one with unusable
// data; state is left unchanged, but in the latter case the outstanding
// request counts as answered and nothing is awaited until Rescan. Other
// errors come from the RequestSink.
func (a *Agent) HandleConfirm(c mlme.Confirm) error {
	if isNilConfirm(c) {
		a.logError(ErrNilConfirm, "dispatch")
		return ErrNilConfirm
	}

	a.mu.Lock()
	if err := a.checkSequenceLocked(c); err != nil {
		a.mu.Unlock()
		a.logError(err, "dispatch")
		return err
	}
	if c.Sequence() != a.outstandingSeq {
		if err := a.takeAbandonedLocked(c); err != nil {
			a.mu.Unlock()
			a.logError(err, "dispatch")
			return err
		}
		a.stats.StaleConfirms++
		a.logger.Info("ignoring stale confirm",
			"kind", c.Kind().String(), "seq", c.Sequence(), "outstanding", a.outstandingSeq)
		a.mu.Unlock()

		ev := log.ConfirmEvent(c)
		ev.Stale = true
		a.logPrimitive(log.DirectionIn, ev)
		return nil
	}

	// The confirm answers the outstanding request; whatever the handler
	// decides, it is no longer awaited.
	a.outstandingSeq = 0
	a.outstandingKind = 0

	var (
		fx  effects
		err error
	)
	switch cc := c.(type) {
	case *mlme.ScanConfirm:
		fx, err = a.handleScanConfirmLocked(cc)
	case *mlme.AuthenticateConfirm:
		fx, err = a.handleAuthenticateConfirmLocked(cc)
	case *mlme.AssociateConfirm:
		fx, err = a.handleAssociateConfirmLocked(cc)
	default:
		err = fmt.Errorf("%w: unhandled confirm type %T", ErrUnexpectedConfirm, c)
	}
	a.mu.Unlock()

	a.logPrimitive(log.DirectionIn, log.ConfirmEvent(c))
	if err != nil {
		a.logError(err, "dispatch")
		return err
	}
	return a.apply(fx)
}

// HandleLinkLost abandons whatever is in progress and starts scanning.
// Every call emits exactly one scan request.
func (a *Agent) HandleLinkLost() error {
	a.mu.Lock()
	a.stats.LinkLosses++
	a.logger.Info("beacon lost, starting scanning again", "state", a.state.String())
	a.current = mlme.BSSDescription{}
	a.hasCurrent = false
	fx := a.scanLocked("link lost")
	a.mu.Unlock()

	a.logNotification(log.NotificationLinkLost, "")
	return a.apply(fx)
}

// Rescan abandons any outstanding request and starts scanning. Hosts use it
// to resume after a desync left nothing awaiting a confirm.
func (a *Agent) Rescan() error {
	a.mu.Lock()
	a.logger.Info("restarting scan", "state", a.state.String())
	a.current = mlme.BSSDescription{}
	a.hasCurrent = false
	fx := a.scanLocked("rescan")
	a.mu.Unlock()

	return a.apply(fx)
}

// HandleAssociated records the informational associated notification. The
// associate confirm already drove the transition, so state is not touched.
func (a *Agent) HandleAssociated() {
	a.mu.Lock()
	a.stats.Associations++
	state := a.state
	fn := a.onAssociated
	a.logger.Info("associated with AP", "state", state.String())
	a.mu.Unlock()

	a.logNotification(log.NotificationAssociated, state.String())
	if fn != nil {
		fn()
	}
}

// checkSequenceLocked rejects confirms that cannot be stale leftovers.
func (a *Agent) checkSequenceLocked(c mlme.Confirm) error {
	seq := c.Sequence()
	switch {
	case seq == 0:
		return fmt.Errorf("%w: %s confirm without sequence", ErrUnexpectedConfirm, c.Kind())
	case seq > a.lastSeq:
		return fmt.Errorf("%w: %s confirm for sequence %d, last issued %d",
			ErrUnexpectedConfirm, c.Kind(), seq, a.lastSeq)
	case seq == a.outstandingSeq && c.Kind() != a.outstandingKind:
		return fmt.Errorf("%w: got %s confirm while %s request %d is outstanding",
			ErrUnexpectedConfirm, c.Kind(), a.outstandingKind, seq)
	}
	return nil
}

// takeAbandonedLocked accepts c as stale if it answers an abandoned request
// of the same kind, forgetting that request.
func (a *Agent) takeAbandonedLocked(c mlme.Confirm) error {
	seq, kind := c.Sequence(), c.Kind()
	for i, p := range a.abandoned {
		if p.seq != seq {
			continue
		}
		if p.kind != kind {
			return fmt.Errorf("%w: got %s confirm for abandoned %s request %d",
				ErrUnexpectedConfirm, kind, p.kind, seq)
		}
		a.abandoned = append(a.abandoned[:i], a.abandoned[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %s confirm for request %d, which is not awaiting a confirm",
		ErrUnexpectedConfirm, kind, seq)
}

func (a *Agent) handleScanConfirmLocked(c *mlme.ScanConfirm) (effects, error) {
	if !c.Result.IsSuccess() {
		a.stats.EmptyScans++
		a.logger.Info("scan failed, continue scanning", "result", c.Result.String())
		return a.scanLocked("scan failed"), nil
	}

	a.dumpAPListLocked(c.BSSList)

	best, ok := selection.Select(c.BSSList)
	if !ok {
		a.stats.EmptyScans++
		a.logger.Info("no suitable AP found, continue scanning")
		return a.scanLocked("no AP found"), nil
	}
	if best.BSSID.IsZero() {
		return effects{}, fmt.Errorf("%w: chosen BSS has no address", ErrMissingResult)
	}

	a.target = best
	a.hasTarget = true
	a.logger.Info("chosen AP, starting authentication",
		"bssid", best.BSSID.String(), "ssid", best.SSID, "channel", best.Channel, "rx_power", best.RxPower)

	req := &mlme.AuthenticateRequest{
		Seq:      a.nextSeqLocked(),
		Address:  best.BSSID,
		AuthType: mlme.AuthSharedKey,
		Timeout:  a.cfg.AuthenticationTimeout,
	}
	a.setOutstandingLocked(req)
	a.stats.AuthAttempts++
	return a.transitionLocked(StateAuthenticating, "AP chosen", req), nil
}

func (a *Agent) handleAuthenticateConfirmLocked(c *mlme.AuthenticateConfirm) (effects, error) {
	if !c.Result.IsSuccess() {
		a.stats.AuthFailures++
		a.logger.Info("authentication failed, going back to scanning",
			"bssid", a.target.BSSID.String(), "result", c.Result.String())
		return a.scanLocked("authentication failed"), nil
	}
	if err := a.checkAddressLocked(c.Kind(), c.Address); err != nil {
		return effects{}, err
	}

	a.logger.Info("authentication successful, associating", "bssid", a.target.BSSID.String())
	req := &mlme.AssociateRequest{
		Seq:     a.nextSeqLocked(),
		Address: a.target.BSSID,
		Timeout: a.cfg.AssociationTimeout,
	}
	a.setOutstandingLocked(req)
	a.stats.AssocAttempts++
	return a.transitionLocked(StateAssociating, "authenticated", req), nil
}

func (a *Agent) handleAssociateConfirmLocked(c *mlme.AssociateConfirm) (effects, error) {
	if !c.Result.IsSuccess() {
		a.stats.AssocFailures++
		a.logger.Info("association failed, going back to scanning",
			"bssid", a.target.BSSID.String(), "result", c.Result.String())
		return a.scanLocked("association failed"), nil
	}
	if err := a.checkAddressLocked(c.Kind(), c.Address); err != nil {
		return effects{}, err
	}

	a.logger.Info("association successful", "bssid", a.target.BSSID.String(), "ssid", a.target.SSID)
	bss := a.target
	a.current = bss
	a.hasCurrent = true
	a.target = mlme.BSSDescription{}
	a.hasTarget = false
	a.stats.Connects++

	fx := a.transitionLocked(StateConnected, "associated", nil)
	fx.target = bss.BSSID.String()
	fx.connected = &bss
	return fx, nil
}

// checkAddressLocked verifies a success confirm names the pending target.
func (a *Agent) checkAddressLocked(kind mlme.Kind, addr mlme.MACAddress) error {
	if addr.IsZero() {
		return fmt.Errorf("%w: %s confirm without address", ErrMissingResult, kind)
	}
	if !a.hasTarget || addr != a.target.BSSID {
		return fmt.Errorf("%w: %s confirm for %s, pending target is %s",
			ErrUnexpectedConfirm, kind, addr, a.target.BSSID)
	}
	return nil
}

// scanLocked builds a scan request, forgets any pending target and moves to
// SCANNING.
func (a *Agent) scanLocked(reason string) effects {
	req := &mlme.ScanRequest{
		Seq:            a.nextSeqLocked(),
		BSSType:        mlme.BSSTypeInfrastructure,
		ActiveScan:     true,
		ProbeDelay:     a.cfg.ProbeDelay,
		MinChannelTime: a.cfg.MinChannelTime,
		MaxChannelTime: a.cfg.MaxChannelTime,
	}
	a.setOutstandingLocked(req)
	a.target = mlme.BSSDescription{}
	a.hasTarget = false
	a.stats.Scans++
	return a.transitionLocked(StateScanning, reason, req)
}

func (a *Agent) transitionLocked(to State, reason string, req mlme.Request) effects {
	fx := effects{from: a.state, to: to, reason: reason, req: req}
	if a.hasTarget {
		fx.target = a.target.BSSID.String()
	}
	a.state = to
	return fx
}

func (a *Agent) nextSeqLocked() uint32 {
	a.lastSeq++
	if a.lastSeq == 0 {
		a.lastSeq = 1
	}
	return a.lastSeq
}

func (a *Agent) setOutstandingLocked(req mlme.Request) {
	if a.outstandingSeq != 0 {
		a.abandoned = append(a.abandoned, pendingRequest{seq: a.outstandingSeq, kind: a.outstandingKind})
		if len(a.abandoned) > maxAbandoned {
			a.abandoned = a.abandoned[1:]
		}
	}
	a.outstandingSeq = req.Sequence()
	a.outstandingKind = req.Kind()
}

// apply publishes a transition and sends its request. It runs without the
// lock held.
func (a *Agent) apply(fx effects) error {
	a.mu.RLock()
	onStateChange := a.onStateChange
	onConnected := a.onConnected
	a.mu.RUnlock()

	if fx.from != fx.to {
		a.logStateChange(fx)
		if onStateChange != nil {
			onStateChange(fx.from, fx.to)
		}
	}

	if fx.req != nil {
		a.logPrimitive(log.DirectionOut, log.RequestEvent(fx.req))
		if err := a.sink.Send(fx.req); err != nil {
			a.logError(err, "send "+fx.req.Kind().String())
			return fmt.Errorf("send %s request: %w", fx.req.Kind(), err)
		}
	}

	if fx.connected != nil && onConnected != nil {
		onConnected(*fx.connected)
	}
	return nil
}

func (a *Agent) dumpAPListLocked(list []mlme.BSSDescription) {
	if !a.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for i, bss := range list {
		a.logger.Debug("scanned AP",
			"index", i,
			"bssid", bss.BSSID.String(),
			"channel", bss.Channel,
			"ssid", bss.SSID,
			"beacon_interval", bss.BeaconInterval,
			"rx_power", bss.RxPower,
		)
	}
}

func (a *Agent) newEvent(dir log.Direction, layer log.Layer, cat log.Category) (log.Logger, log.Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.protoLog, log.Event{
		Timestamp: time.Now(),
		SessionID: a.sessionID,
		Direction: dir,
		Layer:     layer,
		Category:  cat,
		Station:   a.station,
	}
}

func (a *Agent) logPrimitive(dir log.Direction, p *log.PrimitiveEvent) {
	l, ev := a.newEvent(dir, log.LayerMLME, log.CategoryPrimitive)
	ev.Primitive = p
	l.Log(ev)
}

func (a *Agent) logStateChange(fx effects) {
	l, ev := a.newEvent(log.DirectionNone, log.LayerAgent, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		OldState: fx.from.String(),
		NewState: fx.to.String(),
		Reason:   fx.reason,
		Target:   fx.target,
	}
	l.Log(ev)
}

func (a *Agent) logNotification(t log.NotificationType, detail string) {
	l, ev := a.newEvent(log.DirectionIn, log.LayerAgent, log.CategoryNotification)
	ev.Notification = &log.NotificationEvent{Type: t, Detail: detail}
	l.Log(ev)
}

func (a *Agent) logError(err error, where string) {
	a.mu.RLock()
	logger := a.logger
	a.mu.RUnlock()
	logger.Error("agent error", "context", where, "error", err)

	l, ev := a.newEvent(log.DirectionNone, log.LayerAgent, log.CategoryError)
	ev.Error = &log.ErrorEventData{Layer: log.LayerAgent, Message: err.Error(), Context: where}
	l.Log(ev)
}

func isNilConfirm(c mlme.Confirm) bool {
	switch cc := c.(type) {
	case nil:
		return true
	case *mlme.ScanConfirm:
		return cc == nil
	case *mlme.AuthenticateConfirm:
		return cc == nil
	case *mlme.AssociateConfirm:
		return cc == nil
	}
	return false
}
