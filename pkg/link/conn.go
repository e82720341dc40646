package link

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/stamgmt/stamgmt-go/pkg/log"
	"github.com/stamgmt/stamgmt-go/pkg/mlme"
)

// ErrClosed is returned by operations on a closed link.
var ErrClosed = errors.New("link closed")

// confirmBuffer bounds confirmations decoded but not yet consumed.
const confirmBuffer = 16

// Config configures either end of the link.
type Config struct {
	// MaxFrameSize is the largest frame accepted (default 64 KiB).
	MaxFrameSize uint32

	// Logger receives operational messages. Nil discards.
	Logger *slog.Logger

	// ProtocolLog receives one event per frame. Nil disables capture.
	ProtocolLog log.Logger

	// SessionID and Station are stamped on captured frames.
	SessionID string
	Station   string
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// Conn is the station end of the MLME link. It sends requests and
// delivers decoded confirmations on a channel fed by a reader goroutine.
// Conn implements agent.RequestSink.
type Conn struct {
	rw     io.ReadWriteCloser
	framer *Framer
	logger *slog.Logger

	confirms chan mlme.Confirm
	done     chan struct{}
	stopped  chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// NewConn wraps rw and starts reading confirmations.
func NewConn(rw io.ReadWriteCloser, cfg Config) *Conn {
	c := &Conn{
		rw:       rw,
		framer:   NewFramer(rw, cfg.MaxFrameSize),
		logger:   cfg.logger(),
		confirms: make(chan mlme.Confirm, confirmBuffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if cfg.ProtocolLog != nil {
		c.framer.SetLogger(cfg.ProtocolLog, cfg.SessionID, cfg.Station)
	}
	go c.readLoop()
	return c
}

// Send encodes and writes one request.
func (c *Conn) Send(req mlme.Request) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	data, err := mlme.EncodeRequest(req)
	if err != nil {
		return err
	}
	if err := c.framer.WriteFrame(data); err != nil {
		return fmt.Errorf("send %s: %w", req.Kind(), err)
	}
	return nil
}

// Confirms returns the channel of decoded confirmations. It is closed when
// the reader stops; Err then reports why.
func (c *Conn) Confirms() <-chan mlme.Confirm {
	return c.confirms
}

// Err returns the error that stopped the reader, or nil if the link was
// closed locally or the peer ended the stream cleanly.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close closes the link and waits for the reader to stop.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.rw.Close()
	})
	<-c.stopped
	return err
}

func (c *Conn) readLoop() {
	defer close(c.stopped)
	defer close(c.confirms)

	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			c.stop(err)
			return
		}

		conf, err := mlme.DecodeConfirm(data)
		if err != nil {
			c.stop(fmt.Errorf("decode confirm: %w", err))
			return
		}

		select {
		case c.confirms <- conf:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) stop(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	if errors.Is(err, io.EOF) {
		c.logger.Info("MLME link closed by peer")
		return
	}
	c.logger.Error("MLME link failed", "error", err)
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
}

// PeerConn is the MLME end of the link: it reads requests and writes
// confirmations. ReadRequest must be called from one goroutine.
type PeerConn struct {
	rw        io.ReadWriteCloser
	framer    *Framer
	closeOnce sync.Once
}

// NewPeerConn wraps rw.
func NewPeerConn(rw io.ReadWriteCloser, cfg Config) *PeerConn {
	p := &PeerConn{
		rw:     rw,
		framer: NewFramer(rw, cfg.MaxFrameSize),
	}
	if cfg.ProtocolLog != nil {
		p.framer.SetLogger(cfg.ProtocolLog, cfg.SessionID, cfg.Station)
	}
	return p
}

// ReadRequest blocks until the next request arrives. It returns io.EOF
// when the station closes the link.
func (p *PeerConn) ReadRequest() (mlme.Request, error) {
	data, err := p.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	req, err := mlme.DecodeRequest(data)
	if err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// WriteConfirm encodes and writes one confirmation.
func (p *PeerConn) WriteConfirm(c mlme.Confirm) error {
	data, err := mlme.EncodeConfirm(c)
	if err != nil {
		return err
	}
	return p.framer.WriteFrame(data)
}

// Close closes the underlying stream.
func (p *PeerConn) Close() error {
	var err error
	p.closeOnce.Do(func() { err = p.rw.Close() })
	return err
}
