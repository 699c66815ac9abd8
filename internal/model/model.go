package model

import (
	"encoding/json"
	"time"
)

// Method is the channel an attendance proof is submitted through.
type Method string

const (
	MethodFace Method = "face"
	MethodQR   Method = "qr"
)

// Valid reports whether m names a supported method.
func (m Method) Valid() bool {
	return m == MethodFace || m == MethodQR
}

// Status is the backend verdict stored on an attendance record.
type Status string

const (
	StatusPresent  Status = "present"
	StatusRejected Status = "rejected"
)

// UserProfile is the read-only profile returned by login and GET /me.
type UserProfile struct {
	ID            string  `json:"id"`
	Username      string  `json:"username,omitempty"`
	FullName      string  `json:"full_name"`
	Department    string  `json:"department"`
	ClassSection  string  `json:"class_section"`
	StudentID     *string `json:"student_id,omitempty"`
	ApprovalState string  `json:"approval_state,omitempty"`
}

// UnmarshalJSON accepts both "id" and Mongo-style "_id" identifiers.
func (p *UserProfile) UnmarshalJSON(data []byte) error {
	type plain UserProfile
	var aux struct {
		plain
		MongoID string `json:"_id"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = UserProfile(aux.plain)
	if p.ID == "" {
		p.ID = aux.MongoID
	}
	if p.ApprovalState == "" {
		p.ApprovalState = aux.Status
	}
	return nil
}

// Session is the active authentication state of the client.
type Session struct {
	Credential string
	Profile    *UserProfile
}

// Coordinates is an immutable one-shot location fix.
type Coordinates struct {
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	CapturedAt time.Time `json:"captured_at"`
}

// FaceCapture is an encoded still frame held until uploaded or discarded.
type FaceCapture struct {
	Image      []byte
	MimeType   string
	CapturedAt time.Time
}

// Empty reports whether the capture carries no image data.
func (f *FaceCapture) Empty() bool {
	return f == nil || len(f.Image) == 0
}

// TokenSource tells where a QR token came from.
type TokenSource string

const (
	SourceSelfGenerated      TokenSource = "self-generated"
	SourceExternallyProvided TokenSource = "externally-provided"
)

// QRToken is an opaque attendance token.
type QRToken struct {
	Value  string      `json:"value"`
	Source TokenSource `json:"source"`
}

// AttendanceRecord is one entry of the backend's attendance history.
type AttendanceRecord struct {
	ID        string          `json:"id"`
	Method    Method          `json:"method"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// UnmarshalJSON decodes a backend history item and keeps the raw payload.
func (r *AttendanceRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        string          `json:"id"`
		MongoID   string          `json:"_id"`
		Method    Method          `json:"method"`
		Status    Status          `json:"status"`
		CreatedAt string          `json:"created_at"`
		Raw       json.RawMessage `json:"raw"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ID = aux.ID
	if r.ID == "" {
		r.ID = aux.MongoID
	}
	r.Method = aux.Method
	r.Status = aux.Status
	r.CreatedAt = parseTimestamp(aux.CreatedAt)
	if len(aux.Raw) > 0 {
		r.Raw = append(json.RawMessage(nil), aux.Raw...)
	} else {
		r.Raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseTimestamp tolerates the naive ISO timestamps some backends emit.
// Naive values are read as UTC; unparsable values yield the zero time.
func parseTimestamp(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
