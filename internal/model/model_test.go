package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAttendanceRecord_UnmarshalBackendItem(t *testing.T) {
	data := []byte(`{"_id":"rec-1","method":"face","status":"present","created_at":"2024-03-01T09:15:00.250000","distance_m":12.5}`)

	var rec AttendanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rec.ID != "rec-1" {
		t.Errorf("ID = %q, want rec-1", rec.ID)
	}
	if rec.Method != MethodFace || rec.Status != StatusPresent {
		t.Errorf("method/status = %q/%q, want face/present", rec.Method, rec.Status)
	}
	want := time.Date(2024, 3, 1, 9, 15, 0, 250000000, time.UTC)
	if !rec.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, want)
	}
	if string(rec.Raw) != string(data) {
		t.Errorf("Raw = %s, want full payload", rec.Raw)
	}
}

func TestAttendanceRecord_RoundTripKeepsRaw(t *testing.T) {
	orig := []byte(`{"id":"rec-2","method":"qr","status":"rejected","created_at":"2024-03-01T09:15:00Z"}`)
	var rec AttendanceRecord
	if err := json.Unmarshal(orig, &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var again AttendanceRecord
	if err := json.Unmarshal(encoded, &again); err != nil {
		t.Fatalf("Unmarshal again: %v", err)
	}
	if string(again.Raw) != string(orig) {
		t.Errorf("Raw = %s, want %s", again.Raw, orig)
	}
	if !again.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", again.CreatedAt, rec.CreatedAt)
	}
}

func TestUserProfile_UnmarshalMongoID(t *testing.T) {
	var p UserProfile
	if err := json.Unmarshal([]byte(`{"_id":"u1","full_name":"Alice","status":"approved"}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.ID != "u1" {
		t.Errorf("ID = %q, want u1", p.ID)
	}
	if p.FullName != "Alice" {
		t.Errorf("FullName = %q, want Alice", p.FullName)
	}
	if p.ApprovalState != "approved" {
		t.Errorf("ApprovalState = %q, want approved", p.ApprovalState)
	}
}

func TestMethod_Valid(t *testing.T) {
	tests := []struct {
		m    Method
		want bool
	}{
		{MethodFace, true},
		{MethodQR, true},
		{"", false},
		{"fingerprint", false},
	}
	for _, tt := range tests {
		if got := tt.m.Valid(); got != tt.want {
			t.Errorf("Method(%q).Valid() = %v, want %v", tt.m, got, tt.want)
		}
	}
}
