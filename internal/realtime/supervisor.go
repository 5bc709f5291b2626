// Package realtime keeps a live notification channel to the remote store
// and turns change events into debounced refresh requests. Connection
// failures are retried with exponential backoff; after the attempt budget
// is spent the supervisor parks in the offline state until restarted.
package realtime

import (
	"context"
	"log"
	"sync"
	"time"
)

// Status is the channel lifecycle state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
	StatusOffline      Status = "offline"
	StatusClosed       Status = "closed"
)

const (
	reconnectBaseDelay   = 1 * time.Second
	reconnectMaxDelay    = 30 * time.Second
	maxReconnectAttempts = 5
	refreshDebounce      = 1 * time.Second
)

// Notification is one change event from the remote store.
type Notification struct {
	Table    string `json:"table"`
	Action   string `json:"action"`
	RecordID string `json:"recordId,omitempty"`
}

// watchedTables are the record kinds whose changes warrant a refresh.
// Events for anything else are dropped.
var watchedTables = map[string]bool{
	"folders":              true,
	"prompts":              true,
	"quick_access_folders": true,
	"quick_access_items":   true,
	"subscriptions":        true,
}

// Channel is one live subscription handle. Events delivers notifications
// until the channel dies; Err reports why it died after Events is closed.
type Channel interface {
	Events() <-chan Notification
	Err() error
	Close() error
}

// DialFunc establishes a new channel. The supervisor owns the returned
// handle and closes it on reconnect or shutdown.
type DialFunc func(ctx context.Context) (Channel, error)

type Logger interface {
	Printf(format string, args ...any)
}

type Options struct {
	Dial DialFunc
	// OnRefresh fires after the debounce window closes on a burst of
	// relevant change events.
	OnRefresh func()
	// OnOffline fires once when the reconnect budget runs out and the
	// supervisor parks in the offline state.
	OnOffline func()
	Logger    Logger
}

// Supervisor drives the reconnect loop and the shared refresh debounce.
type Supervisor struct {
	dial      DialFunc
	onRefresh func()
	onOffline func()
	logger    Logger

	// afterFunc is swapped out in tests to capture scheduled delays.
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu             sync.Mutex
	status         Status
	lastErr        error
	attempts       int
	channel        Channel
	reconnectTimer *time.Timer
	debounceTimer  *time.Timer
	ctx            context.Context
	cancel         context.CancelFunc
	started        bool
}

func NewSupervisor(opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	onRefresh := opts.OnRefresh
	if onRefresh == nil {
		onRefresh = func() {}
	}
	onOffline := opts.OnOffline
	if onOffline == nil {
		onOffline = func() {}
	}
	return &Supervisor{
		dial:      opts.Dial,
		onRefresh: onRefresh,
		onOffline: onOffline,
		logger:    logger,
		afterFunc: time.AfterFunc,
		status:    StatusDisconnected,
	}
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Supervisor) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Start begins connecting. Calling Start on a running supervisor resets
// the attempt budget and replaces any existing channel.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.stopLocked()
	}
	s.started = true
	s.attempts = 0
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.connect()
}

// Stop tears the channel down and cancels any pending reconnect or
// debounce timer. The supervisor can be started again afterwards.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.status = StatusClosed
}

func (s *Supervisor) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	s.started = false
}

func (s *Supervisor) connect() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	// A fresh subscribe always releases the previous handle first.
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	s.status = StatusConnecting
	ctx := s.ctx
	s.mu.Unlock()

	ch, err := s.dial(ctx)
	if err != nil {
		s.logger.Printf("realtime: dial failed: %v", err)
		s.scheduleReconnect(err)
		return
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		_ = ch.Close()
		return
	}
	s.channel = ch
	s.status = StatusConnected
	s.lastErr = nil
	s.attempts = 0
	s.mu.Unlock()

	go s.consume(ch)
}

func (s *Supervisor) consume(ch Channel) {
	for event := range ch.Events() {
		if !watchedTables[event.Table] {
			continue
		}
		s.noteChange()
	}

	s.mu.Lock()
	stale := s.channel != ch
	s.mu.Unlock()
	if stale {
		// Replaced by a newer subscribe; nothing to do.
		return
	}
	err := ch.Err()
	if err != nil {
		s.logger.Printf("realtime: channel closed: %v", err)
	}
	s.scheduleReconnect(err)
}

// noteChange restarts the shared debounce window. A burst of events
// collapses into a single refresh one second after the last one.
func (s *Supervisor) noteChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = s.afterFunc(refreshDebounce, s.onRefresh)
}

func (s *Supervisor) scheduleReconnect(cause error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.channel = nil
	s.lastErr = cause
	if s.attempts >= maxReconnectAttempts {
		s.status = StatusOffline
		s.logger.Printf("realtime: giving up after %d attempts, going offline", s.attempts)
		s.mu.Unlock()
		// Notified outside the lock; the callback may read Status.
		s.onOffline()
		return
	}
	delay := backoffDelay(s.attempts)
	s.attempts++
	s.status = StatusError
	s.reconnectTimer = s.afterFunc(delay, s.connect)
	s.mu.Unlock()
}

// backoffDelay returns min(base * 2^attempt, max) for a zero-based attempt.
func backoffDelay(attempt int) time.Duration {
	delay := reconnectBaseDelay << uint(attempt)
	if delay <= 0 || delay > reconnectMaxDelay {
		return reconnectMaxDelay
	}
	return delay
}
