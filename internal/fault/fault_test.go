package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIs_MatchesKind(t *testing.T) {
	err := E(NoActiveStream, "capture.Snapshot", "camera not started")
	if !errors.Is(err, ErrNoActiveStream) {
		t.Error("errors.Is should match sentinel of same kind")
	}
	if errors.Is(err, ErrCameraUnavailable) {
		t.Error("errors.Is should not match sentinel of another kind")
	}

	wrapped := fmt.Errorf("dashboard: %w", err)
	if !errors.Is(wrapped, ErrNoActiveStream) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	err := Wrap(TransportError, "backend.Mark", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("wrapped cause should be reachable")
	}
	if KindOf(err) != TransportError {
		t.Errorf("KindOf = %v, want %v", KindOf(err), TransportError)
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != Other {
		t.Errorf("KindOf = %v, want %v", got, Other)
	}
	if got := KindOf(nil); got != Other {
		t.Errorf("KindOf(nil) = %v, want %v", got, Other)
	}
}

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"message", E(Rejected, "backend.Mark", "outside geofence"), "backend.Mark: outside geofence"},
		{"cause", Wrap(TransportError, "", errors.New("dial tcp: refused")), "dial tcp: refused"},
		{"both", &Error{Kind: TransportError, Op: "op", Message: "history", Err: errors.New("eof")}, "op: history: eof"},
		{"bare", &Error{Kind: Busy}, "busy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	if got := Message(E(Rejected, "backend.Mark", "outside geofence")); got != "outside geofence" {
		t.Errorf("Message = %q, want %q", got, "outside geofence")
	}
	if got := Message(errors.New("plain")); got != "plain" {
		t.Errorf("Message = %q, want plain", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q, want empty", got)
	}
}
