package comm

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/owb.go/pkg/ppp"
)

// Transaction defaults.
const (
	DefaultTimeout    = 100 * time.Millisecond
	DefaultRetries    = 5
	DefaultRetryDelay = 50 * time.Millisecond
)

// Match is how a received packet relates to a pending request.
type Match int

// Matches.
const (
	MatchNone Match = iota
	MatchLoopback
	MatchLoopbackMismatch
	MatchReply
)

// String implements fmt.Stringer.
func (m Match) String() string {
	switch m {
	case MatchNone:
		return "none"
	case MatchLoopback:
		return "loopback"
	case MatchLoopbackMismatch:
		return "loopback-mismatch"
	case MatchReply:
		return "reply"
	}
	return fmt.Sprintf("match(%d)", int(m))
}

// Correlate classifies pkt against the request payload.
// The accessory echoes a request with the same opcode before it replies
// with the mapped reply opcode.
func Correlate(request []byte, pkt *Packet) Match {
	if len(request) == 0 || len(pkt.Data) == 0 {
		return MatchNone
	}
	op := Opcode(request[0])
	switch pkt.Opcode() {
	case op:
		if bytes.Equal(request, pkt.Data) {
			return MatchLoopback
		}
		return MatchLoopbackMismatch
	default:
		if reply, ok := ReplyOf(op); ok && pkt.Opcode() == reply {
			return MatchReply
		}
	}
	return MatchNone
}

type transaction struct {
	request   []byte
	loopback  chan error
	reply     chan []byte
	wantReply bool
	echoed    bool
}

func newTransaction(payload []byte, wantReply bool) *transaction {
	tx := &transaction{
		request:   make([]byte, len(payload)),
		loopback:  make(chan error, 1),
		reply:     make(chan []byte, 1),
		wantReply: wantReply,
	}
	copy(tx.request, payload)
	return tx
}

// resolve completes the waiting phase matching pkt. Extra packets are
// dropped as only the first one counts, and a reply only counts after
// the loopback.
func (tx *transaction) resolve(pkt *Packet) Match {
	m := Correlate(tx.request, pkt)
	switch m {
	case MatchLoopback:
		tx.echoed = true
		tx.tryLoopback(nil)
	case MatchLoopbackMismatch:
		tx.tryLoopback(&LoopbackError{Sent: tx.request, Echoed: pkt.Data})
	case MatchReply:
		if tx.wantReply && tx.echoed {
			reply := make([]byte, len(pkt.Data))
			copy(reply, pkt.Data)
			select {
			case tx.reply <- reply:
			default:
			}
		}
	}
	return m
}

func (tx *transaction) tryLoopback(err error) {
	select {
	case tx.loopback <- err:
	default:
	}
}

// Client performs write-then-wait transactions over a FIFO.
// Only one transaction is in flight at a time.
type Client struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration

	fifo       *FIFO
	dispatcher *Dispatcher

	txLock      sync.Mutex
	pendingLock sync.Mutex
	pending     *transaction
}

// NewClient creates client and wraps the fifo.
func NewClient(fifo *FIFO) *Client {
	c := &Client{
		Timeout:    DefaultTimeout,
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		fifo:       fifo,
		dispatcher: NewDispatcher(),
	}
	c.fifo.Handler = c
	return c
}

// FIFO gets wrapped FIFO.
func (c *Client) FIFO() *FIFO {
	return c.fifo
}

// Dispatcher receives every inbound packet after correlation.
func (c *Client) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Write sends payload and waits for its loopback.
func (c *Client) Write(ctx context.Context, payload []byte) error {
	_, err := c.Transfer(ctx, payload, false)
	return err
}

// Query sends payload and returns the reply.
func (c *Client) Query(ctx context.Context, payload []byte) ([]byte, error) {
	return c.Transfer(ctx, payload, true)
}

// Transfer sends payload, waits for the loopback and, if wantReply, the reply.
// Timeouts and corrupted loopbacks are retried; the final failure is
// a *TransactionError.
func (c *Client) Transfer(ctx context.Context, payload []byte, wantReply bool) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(payload) > ppp.MaxPayloadLen {
		return nil, ppp.ErrPayloadTooLarge
	}
	op := Opcode(payload[0])
	if _, ok := ReplyOf(op); wantReply && !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNoReplyOpcode)
	}

	attempts := c.Retries
	if attempts <= 0 {
		attempts = 1
	}

	c.txLock.Lock()
	defer c.txLock.Unlock()

	var lastErr error
	for i := 1; i <= attempts; i++ {
		if i > 1 && c.RetryDelay > 0 {
			select {
			case <-time.After(c.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		reply, err := c.attempt(ctx, payload, wantReply)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retriable(err) {
			return nil, err
		}
		lastErr = err
		glog.Warningf("%s attempt %d/%d: %v", op, i, attempts, err)
	}
	return nil, &TransactionError{Opcode: op, Attempts: attempts, Err: lastErr}
}

func retriable(err error) bool {
	switch e := err.(type) {
	case *LoopbackError:
		return true
	case *phaseError:
		return e.err == ErrTimeout
	}
	return false
}

type phaseError struct {
	phase string
	err   error
}

func (e *phaseError) Error() string {
	return e.phase + ": " + e.err.Error()
}

func (e *phaseError) Unwrap() error {
	return e.err
}

func (c *Client) attempt(ctx context.Context, payload []byte, wantReply bool) ([]byte, error) {
	tx := newTransaction(payload, wantReply)
	c.setPending(tx)
	defer c.setPending(nil)

	if err := c.fifo.Send(tx.request); err != nil {
		return nil, err
	}
	if err := c.waitLoopback(ctx, tx); err != nil {
		return nil, err
	}
	if !wantReply {
		return nil, nil
	}
	return c.waitReply(ctx, tx)
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) waitLoopback(ctx context.Context, tx *transaction) error {
	timer := time.NewTimer(c.timeout())
	defer timer.Stop()
	select {
	case err := <-tx.loopback:
		return err
	case <-timer.C:
		return &phaseError{phase: "loopback", err: ErrTimeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) waitReply(ctx context.Context, tx *transaction) ([]byte, error) {
	timer := time.NewTimer(c.timeout())
	defer timer.Stop()
	select {
	case reply := <-tx.reply:
		return reply, nil
	case <-timer.C:
		return nil, &phaseError{phase: "reply", err: ErrTimeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) setPending(tx *transaction) {
	c.pendingLock.Lock()
	c.pending = tx
	c.pendingLock.Unlock()
}

// HandlePacket implements PacketHandler.
func (c *Client) HandlePacket(ctx context.Context, pkt *Packet) {
	c.pendingLock.Lock()
	tx := c.pending
	c.pendingLock.Unlock()
	if tx != nil {
		if m := tx.resolve(pkt); m != MatchNone && glog.V(3) {
			glog.Infof("%s: %s", m, pkt)
		}
	}
	c.dispatcher.HandlePacket(ctx, pkt)
}

// Run wraps FIFO.Run to implement Runnable.
func (c *Client) Run(ctx context.Context) error {
	return c.fifo.Run(ctx)
}
