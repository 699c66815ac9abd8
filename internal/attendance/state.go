package attendance

import (
	"time"

	"attendclient/internal/fault"
	"attendclient/internal/model"
	"attendclient/internal/submission"
)

// Phase names a state for display and metrics.
type Phase string

const (
	PhaseIdle                Phase = "idle"
	PhaseCapturingArtifact   Phase = "capturing_artifact"
	PhaseAwaitingCoordinates Phase = "awaiting_coordinates"
	PhaseSubmitting          Phase = "submitting"
	PhaseSettled             Phase = "settled"
)

// State is one step of a marking attempt. The concrete types below are the
// only implementations.
type State interface {
	Phase() Phase
	state()
}

// Idle: no attempt in progress.
type Idle struct{}

// CapturingArtifact: a method is selected; the artifact may not exist yet.
type CapturingArtifact struct {
	Method     model.Method
	credential string
	artifact   *artifact
}

// AwaitingCoordinates: the artifact exists and a location fix is requested.
type AwaitingCoordinates struct {
	AttemptID string
	Method    model.Method
	artifact  artifact
}

// Submitting: the request is built and in flight. Only the request is held.
type Submitting struct {
	AttemptID   string
	Method      model.Method
	Request     submission.Request
	Coordinates *model.Coordinates
	StartedAt   time.Time
}

// Settled: the attempt ended. No artifact survives into this state.
type Settled struct {
	Outcome Outcome
}

func (Idle) Phase() Phase                { return PhaseIdle }
func (CapturingArtifact) Phase() Phase   { return PhaseCapturingArtifact }
func (AwaitingCoordinates) Phase() Phase { return PhaseAwaitingCoordinates }
func (Submitting) Phase() Phase          { return PhaseSubmitting }
func (Settled) Phase() Phase             { return PhaseSettled }

func (Idle) state()                {}
func (CapturingArtifact) state()   {}
func (AwaitingCoordinates) state() {}
func (Submitting) state()          {}
func (Settled) state()             {}

// HasArtifact reports whether a face capture or token is held.
func (s CapturingArtifact) HasArtifact() bool { return s.artifact != nil }

// artifact holds exactly one of face or token.
type artifact struct {
	face  *model.FaceCapture
	token *model.QRToken
}

func faceArtifact(fc model.FaceCapture) *artifact { return &artifact{face: &fc} }

func tokenArtifact(t model.QRToken) *artifact { return &artifact{token: &t} }

func (a artifact) input(m model.Method, coords *model.Coordinates) submission.Input {
	return submission.Input{Method: m, Face: a.face, Token: a.token, Coordinates: coords}
}

// OutcomeKind partitions settled attempts.
type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeRejected OutcomeKind = "rejected"
	OutcomeError    OutcomeKind = "error"
)

// Outcome is the result of one settled attempt. Rejected is a legitimate
// denial by the backend; Error is a system or credential failure and carries Err.
type Outcome struct {
	AttemptID   string
	Method      model.Method
	Kind        OutcomeKind
	Message     string
	Err         error
	Coordinates *model.Coordinates
	SettledAt   time.Time
	Duration    time.Duration
	// HistoryErr is set when the follow-up history refresh failed.
	HistoryErr error
}

// Snapshot is a serialisable view of the machine.
type Snapshot struct {
	Phase       Phase              `json:"phase"`
	Method      model.Method       `json:"method,omitempty"`
	AttemptID   string             `json:"attempt_id,omitempty"`
	HasArtifact bool               `json:"has_artifact"`
	Outcome     *OutcomeView       `json:"outcome,omitempty"`
	Coordinates *model.Coordinates `json:"coordinates,omitempty"`
}

// OutcomeView is the JSON form of an Outcome.
type OutcomeView struct {
	AttemptID string       `json:"attempt_id"`
	Method    model.Method `json:"method"`
	Kind      OutcomeKind  `json:"kind"`
	Message   string       `json:"message"`
	ErrorKind string       `json:"error_kind,omitempty"`
	SettledAt time.Time    `json:"settled_at"`
}

func snapshotOf(s State) Snapshot {
	switch st := s.(type) {
	case Idle:
		return Snapshot{Phase: PhaseIdle}
	case CapturingArtifact:
		return Snapshot{Phase: PhaseCapturingArtifact, Method: st.Method, HasArtifact: st.HasArtifact()}
	case AwaitingCoordinates:
		return Snapshot{Phase: PhaseAwaitingCoordinates, Method: st.Method, AttemptID: st.AttemptID, HasArtifact: true}
	case Submitting:
		return Snapshot{Phase: PhaseSubmitting, Method: st.Method, AttemptID: st.AttemptID, Coordinates: st.Coordinates}
	case Settled:
		v := st.Outcome.View()
		return Snapshot{Phase: PhaseSettled, Method: st.Outcome.Method, AttemptID: st.Outcome.AttemptID, Outcome: &v, Coordinates: st.Outcome.Coordinates}
	default:
		panic("attendance: unknown state")
	}
}

// View returns the JSON form of o.
func (o Outcome) View() OutcomeView {
	v := OutcomeView{
		AttemptID: o.AttemptID,
		Method:    o.Method,
		Kind:      o.Kind,
		Message:   o.Message,
		SettledAt: o.SettledAt,
	}
	if o.Err != nil {
		v.ErrorKind = fault.KindOf(o.Err).String()
	}
	return v
}
