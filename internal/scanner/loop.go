package scanner

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"idscan/internal/capture"
	"idscan/internal/metrics"
	"idscan/internal/model"
	"idscan/internal/session"
)

// State is the scan loop's visible state.
type State string

const (
	StateReady       State = "ready"
	StateCapturing   State = "capturing"
	StateClassifying State = "classifying"
	StateAccepted    State = "accepted"
	StateRejected    State = "rejected"
	StateDuplicate   State = "duplicate"
	StateCallFailed  State = "call_failed"
)

// ErrScanInFlight is returned when a reset is requested while an attempt is
// outstanding. The attempt always runs to its own resolution; it is never
// pre-empted.
var ErrScanInFlight = errors.New("scan in progress")

const (
	msgReady     = "Position ID card in frame"
	msgScanning  = "Scanning ID card..."
	msgDuplicate = "ID already scanned"
	msgFailed    = "Scan failed, retrying on next frame"
	msgInvalid   = "Invalid ID card"
)

// Verifier classifies one captured frame.
type Verifier interface {
	Verify(ctx context.Context, frame []byte) (*model.Verdict, error)
}

// Status is a point-in-time view of the loop for the operator UI.
type Status struct {
	State   State     `json:"state"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Config holds the loop's timing knobs.
type Config struct {
	Interval       time.Duration
	AcceptedHold   time.Duration
	RejectedHold   time.Duration
	DuplicateHold  time.Duration
	CallFailedHold time.Duration
}

// Loop drives the capture-verify-dedup-persist cycle. A single goroutine
// (Run) owns the state; the Ready-only guard on each tick guarantees at
// most one attempt, and so at most one outstanding Verify call, at any
// time. All session mutations happen from that goroutine.
type Loop struct {
	cfg      Config
	source   capture.Source
	verifier Verifier
	store    *session.Store
	online   func() bool
	now      func() time.Time

	mu      sync.Mutex
	state   State
	message string
	at      time.Time
}

// New creates a loop. online gates attempts; it is read on every tick.
// The records gauge is seeded here so a restored session is visible before
// the first scan completes.
func New(cfg Config, source capture.Source, verifier Verifier, store *session.Store, online func() bool) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	metrics.SessionRecords.Set(float64(store.Count()))
	return &Loop{
		cfg:      cfg,
		source:   source,
		verifier: verifier,
		store:    store,
		online:   online,
		now:      time.Now,
		state:    StateReady,
		message:  msgReady,
		at:       time.Now(),
	}
}

// Status returns the current state for display.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{State: l.state, Message: l.message, At: l.at}
}

// Reset ends the session. Disallowed while an attempt is in flight: the
// caller retries once the outcome resolves.
func (l *Loop) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateReady {
		return ErrScanInFlight
	}
	if err := l.store.Clear(); err != nil {
		return err
	}
	metrics.SessionRecords.Set(0)
	return nil
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick runs one full attempt, or nothing at all. The guard and the state
// transition to Capturing happen under one lock acquisition so a
// concurrent Reset can never interleave with the start of an attempt.
func (l *Loop) tick(ctx context.Context) {
	if !l.begin() {
		return
	}

	outcome, hold := l.attempt(ctx)
	metrics.ScanAttempts.WithLabelValues(string(outcome)).Inc()
	metrics.SessionRecords.Set(float64(l.store.Count()))

	// Scheduled transition back to Ready, independent of the tick cadence.
	timer := time.NewTimer(hold)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	l.setState(StateReady, msgReady)
}

// begin checks the tick guard: Ready, online, active session.
func (l *Loop) begin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateReady || !l.online() || !l.store.Active() {
		return false
	}
	l.state = StateCapturing
	l.message = msgScanning
	l.at = l.now()
	return true
}

func (l *Loop) attempt(ctx context.Context) (State, time.Duration) {
	frame, err := l.source.Frame(ctx)
	if err != nil {
		log.Printf("frame capture failed: %v", err)
		l.setState(StateCallFailed, msgFailed)
		return StateCallFailed, l.cfg.CallFailedHold
	}

	l.setState(StateClassifying, msgScanning)
	start := l.now()
	verdict, err := l.verifier.Verify(ctx, frame)
	metrics.VerifyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Printf("verify failed: %v", err)
		l.setState(StateCallFailed, msgFailed)
		return StateCallFailed, l.cfg.CallFailedHold
	}

	if !verdict.Valid {
		msg := verdict.RejectionReason
		if msg == "" {
			msg = msgInvalid
		}
		l.setState(StateRejected, msg)
		return StateRejected, l.cfg.RejectedHold
	}

	id := model.NormalizeIdentifier(verdict.Identifier)
	if id == "" {
		log.Printf("verdict accepted but identifier empty")
		l.setState(StateCallFailed, msgFailed)
		return StateCallFailed, l.cfg.CallFailedHold
	}

	if l.store.Seen(id) {
		l.setState(StateDuplicate, msgDuplicate)
		return StateDuplicate, l.cfg.DuplicateHold
	}

	now := l.now()
	rec := model.AttendanceRecord{
		StudentName: verdict.StudentName,
		Identifier:  id,
		SlotName:    l.store.Slot(),
		CaptureDate: now.Format("2006-01-02"),
		CaptureTime: now.Format("15:04"),
	}
	if _, err := l.store.Append(rec); err != nil {
		// Session vanished mid-attempt; nothing to record against.
		log.Printf("append record failed: %v", err)
		l.setState(StateCallFailed, msgFailed)
		return StateCallFailed, l.cfg.CallFailedHold
	}

	l.setState(StateAccepted, "Marked: "+verdict.StudentName)
	return StateAccepted, l.cfg.AcceptedHold
}

func (l *Loop) setState(s State, msg string) {
	l.mu.Lock()
	l.state = s
	l.message = msg
	l.at = l.now()
	l.mu.Unlock()
}
