// Package attendance sequences capability acquisition, submission and
// history reconciliation for one attendance attempt at a time.
package attendance

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendclient/internal/backend"
	"attendclient/internal/fault"
	"attendclient/internal/metrics"
	"attendclient/internal/model"
	"attendclient/internal/submission"
)

// Credentials reports whether the client holds a usable session.
type Credentials interface {
	Credential() (string, error)
}

// Device is the capability acquirer as seen by the orchestrator.
type Device interface {
	AcquireLocation(ctx context.Context) (model.Coordinates, error)
	Snapshot(ctx context.Context) (model.FaceCapture, error)
}

// Backend performs the remote calls of a marking attempt.
type Backend interface {
	Mark(ctx context.Context, req submission.Request) (backend.Verdict, error)
	MintSelfQR(ctx context.Context, coords *model.Coordinates) (model.QRToken, error)
	UploadPhoto(ctx context.Context, face model.FaceCapture) (string, error)
}

// Refresher reloads the history view.
type Refresher interface {
	Refresh(ctx context.Context) ([]model.AttendanceRecord, error)
}

// Config tunes the orchestrator.
type Config struct {
	// SubmitTimeout bounds a dispatch; zero means no client-side limit.
	SubmitTimeout time.Duration
	Metrics       *metrics.Metrics
	// OnChange receives a snapshot after every transition.
	OnChange func(Snapshot)
}

// Orchestrator drives one attempt at a time. A new selection or submission
// while a dispatch is pending is rejected with fault.Busy.
type Orchestrator struct {
	creds   Credentials
	device  Device
	backend Backend
	history Refresher
	cfg     Config
	now     func() time.Time

	mu    sync.Mutex
	state State
}

// New creates an idle orchestrator.
func New(creds Credentials, device Device, b Backend, history Refresher, cfg Config) *Orchestrator {
	return &Orchestrator{
		creds:   creds,
		device:  device,
		backend: b,
		history: history,
		cfg:     cfg,
		now:     time.Now,
		state:   Idle{},
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns a serialisable view of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	return snapshotOf(o.State())
}

// setLocked must be called with o.mu held. It returns the snapshot to publish
// once the lock is released.
func (o *Orchestrator) setLocked(s State) Snapshot {
	o.state = s
	o.cfg.Metrics.ObserveTransition(string(s.Phase()))
	return snapshotOf(s)
}

func (o *Orchestrator) publish(s Snapshot) {
	if o.cfg.OnChange != nil {
		o.cfg.OnChange(s)
	}
}

func busy(op string) error {
	return fault.E(fault.Busy, op, "a submission is already in progress")
}

// Select starts a new attempt with method, discarding any artifact or outcome
// held from a previous one.
func (o *Orchestrator) Select(method model.Method) error {
	const op = "attendance.Select"
	if !method.Valid() {
		return fault.E(fault.InvalidInput, op, "unknown method "+string(method))
	}
	cred, err := o.creds.Credential()
	if err != nil {
		return err
	}

	o.mu.Lock()
	switch o.state.(type) {
	case AwaitingCoordinates, Submitting:
		o.mu.Unlock()
		return busy(op)
	case Idle, CapturingArtifact, Settled:
	}
	snap := o.setLocked(CapturingArtifact{Method: method, credential: cred})
	o.mu.Unlock()
	o.publish(snap)
	return nil
}

// Cancel abandons an attempt that has not been dispatched.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	switch o.state.(type) {
	case AwaitingCoordinates, Submitting:
		o.mu.Unlock()
		return busy("attendance.Cancel")
	case Idle, CapturingArtifact, Settled:
	}
	snap := o.setLocked(Idle{})
	o.mu.Unlock()
	o.publish(snap)
	return nil
}

// CaptureFace takes a still from the active camera stream as the artifact of
// a face attempt. A newer capture replaces an older one.
func (o *Orchestrator) CaptureFace(ctx context.Context) error {
	const op = "attendance.CaptureFace"
	if !o.capturing(model.MethodFace) {
		return fault.E(fault.InvalidState, op, "select the face method first")
	}
	fc, err := o.device.Snapshot(ctx)
	if err != nil {
		return err
	}
	if fc.Empty() {
		return fault.E(fault.MissingArtifact, op, "camera returned an empty frame")
	}

	o.mu.Lock()
	// The attempt may have been cancelled or reselected while the frame was taken.
	st, ok := o.state.(CapturingArtifact)
	if !ok || st.Method != model.MethodFace {
		o.mu.Unlock()
		return fault.E(fault.InvalidState, op, "attempt changed during capture")
	}
	snap := o.setLocked(CapturingArtifact{Method: model.MethodFace, credential: st.credential, artifact: faceArtifact(fc)})
	o.mu.Unlock()
	o.publish(snap)
	return nil
}

func (o *Orchestrator) capturing(m model.Method) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.state.(CapturingArtifact)
	return ok && st.Method == m
}

// ProvideToken sets an externally provided QR token as the artifact of a qr attempt.
func (o *Orchestrator) ProvideToken(token string) error {
	const op = "attendance.ProvideToken"
	token = strings.TrimSpace(token)

	o.mu.Lock()
	st, ok := o.state.(CapturingArtifact)
	if !ok || st.Method != model.MethodQR {
		o.mu.Unlock()
		return fault.E(fault.InvalidState, op, "select the qr method first")
	}
	if token == "" {
		o.mu.Unlock()
		return fault.E(fault.MissingArtifact, op, "qr token is empty")
	}
	snap := o.setLocked(CapturingArtifact{
		Method:     model.MethodQR,
		credential: st.credential,
		artifact:   tokenArtifact(model.QRToken{Value: token, Source: model.SourceExternallyProvided}),
	})
	o.mu.Unlock()
	o.publish(snap)
	return nil
}

// Submit sends the held artifact. Precondition failures are returned as
// errors and leave the state unchanged; once dispatched, every result is a
// settled Outcome.
func (o *Orchestrator) Submit(ctx context.Context) (Outcome, error) {
	const op = "attendance.Submit"

	o.mu.Lock()
	var capturing CapturingArtifact
	switch st := o.state.(type) {
	case CapturingArtifact:
		capturing = st
	case AwaitingCoordinates, Submitting:
		o.mu.Unlock()
		return Outcome{}, busy(op)
	case Idle, Settled:
		o.mu.Unlock()
		return Outcome{}, fault.E(fault.MissingArtifact, op, "nothing captured for this attempt")
	}
	if capturing.artifact == nil {
		o.mu.Unlock()
		return Outcome{}, fault.E(fault.MissingArtifact, op, "nothing captured for this attempt")
	}
	cred, err := o.creds.Credential()
	if err != nil {
		o.mu.Unlock()
		return Outcome{}, err
	}
	// An artifact belongs to the session it was captured in.
	if cred != capturing.credential {
		snap := o.setLocked(Idle{})
		o.mu.Unlock()
		o.publish(snap)
		log.Printf("attendance: session changed since %s was selected, attempt discarded", capturing.Method)
		return Outcome{}, fault.E(fault.InvalidState, op, "session changed, start a new attempt")
	}
	attemptID := uuid.NewString()
	art := *capturing.artifact
	snap := o.setLocked(AwaitingCoordinates{AttemptID: attemptID, Method: capturing.Method, artifact: art})
	o.mu.Unlock()
	o.publish(snap)

	// Coordinates are always fresh for a dispatch; a missing fix is sent as empty.
	var coords *model.Coordinates
	if c, err := o.device.AcquireLocation(ctx); err != nil {
		log.Printf("attempt %s: location unavailable, submitting without coordinates: %v", attemptID, err)
	} else {
		coords = &c
	}

	req, err := submission.Build(art.input(capturing.Method, coords))
	if err != nil {
		o.mu.Lock()
		snap := o.setLocked(capturing)
		o.mu.Unlock()
		o.publish(snap)
		return Outcome{}, err
	}

	started := o.now()
	o.mu.Lock()
	snap = o.setLocked(Submitting{AttemptID: attemptID, Method: capturing.Method, Request: req, Coordinates: coords, StartedAt: started})
	o.mu.Unlock()
	o.publish(snap)

	dispatchCtx := backend.WithRequestID(ctx, attemptID)
	if o.cfg.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(dispatchCtx, o.cfg.SubmitTimeout)
		defer cancel()
	}
	verdict, err := o.backend.Mark(dispatchCtx, req)

	out := Outcome{
		AttemptID:   attemptID,
		Method:      capturing.Method,
		Coordinates: coords,
		SettledAt:   o.now(),
	}
	out.Duration = out.SettledAt.Sub(started)
	switch {
	case err != nil:
		out.Kind = OutcomeError
		out.Err = err
		out.Message = fault.Message(err)
		if errors.Is(err, context.DeadlineExceeded) && fault.KindOf(err) == fault.Other {
			out.Err = fault.Wrap(fault.TransportError, op, err)
		}
	case verdict.Present:
		out.Kind = OutcomeSuccess
		out.Message = verdict.Message
	default:
		out.Kind = OutcomeRejected
		out.Message = verdict.Message
	}

	o.mu.Lock()
	snap = o.setLocked(Settled{Outcome: out})
	o.mu.Unlock()
	o.publish(snap)
	o.cfg.Metrics.ObserveOutcome(string(out.Method), string(out.Kind), out.Duration)
	log.Printf("attempt %s settled: method=%s outcome=%s message=%q", attemptID, out.Method, out.Kind, out.Message)

	if out.Kind != OutcomeError && o.history != nil {
		if _, herr := o.history.Refresh(ctx); herr != nil {
			log.Printf("attempt %s: history refresh failed: %v", attemptID, herr)
			out.HistoryErr = herr
		}
	}
	return out, nil
}

// GenerateSelfToken mints a token bound to this session for another device to
// submit. It does not touch the marking state.
func (o *Orchestrator) GenerateSelfToken(ctx context.Context, coords *model.Coordinates) (model.QRToken, error) {
	if _, err := o.creds.Credential(); err != nil {
		return model.QRToken{}, err
	}
	return o.backend.MintSelfQR(ctx, coords)
}

// SaveReferencePhoto uploads a fresh still as the user's reference face. It
// is independent of the marking state.
func (o *Orchestrator) SaveReferencePhoto(ctx context.Context) (string, error) {
	if _, err := o.creds.Credential(); err != nil {
		return "", err
	}
	fc, err := o.device.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return o.backend.UploadPhoto(ctx, fc)
}
