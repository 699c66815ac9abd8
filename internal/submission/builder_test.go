package submission

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"testing"
	"time"

	"attendclient/internal/fault"
	"attendclient/internal/model"
)

func face() *model.FaceCapture {
	return &model.FaceCapture{Image: []byte{0xff, 0xd8, 0x01, 0x02}, MimeType: "image/jpeg", CapturedAt: time.Now()}
}

func coords() *model.Coordinates {
	return &model.Coordinates{Latitude: 12.9, Longitude: 77.6}
}

type formPart struct {
	contentType string
	filename    string
	data        []byte
}

func readForm(t *testing.T, req Request) map[string]formPart {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(req.ContentType)
	if err != nil {
		t.Fatalf("ParseMediaType: %v", err)
	}
	if mediaType != "multipart/form-data" {
		t.Fatalf("media type = %q, want multipart/form-data", mediaType)
	}
	parts := map[string]formPart{}
	r := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		data, _ := io.ReadAll(p)
		parts[p.FormName()] = formPart{contentType: p.Header.Get("Content-Type"), filename: p.FileName(), data: data}
	}
	return parts
}

func TestBuild_Face(t *testing.T) {
	fc := face()
	req, err := Build(Input{Method: model.MethodFace, Face: fc, Coordinates: coords()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if req.Path != PathMarkFace {
		t.Errorf("Path = %q, want %q", req.Path, PathMarkFace)
	}
	if got := req.Query.Get("lat"); got != "12.9" {
		t.Errorf("lat query = %q, want 12.9", got)
	}
	if got := req.Query.Get("lng"); got != "77.6" {
		t.Errorf("lng query = %q, want 77.6", got)
	}

	parts := readForm(t, req)
	file, ok := parts["file"]
	if !ok {
		t.Fatal("multipart body has no file part")
	}
	if !bytes.Equal(file.data, fc.Image) {
		t.Errorf("file part = %v, want capture bytes", file.data)
	}
	if file.filename != "face.jpg" || file.contentType != "image/jpeg" {
		t.Errorf("file part = %q %q, want face.jpg image/jpeg", file.filename, file.contentType)
	}
	if _, ok := parts["qr_token"]; ok {
		t.Error("face body must not carry a qr token")
	}
	if string(parts["lat"].data) != "12.9" || string(parts["lng"].data) != "77.6" {
		t.Errorf("form coords = %q,%q", parts["lat"].data, parts["lng"].data)
	}
}

func TestBuild_FaceBoundaryNotInImage(t *testing.T) {
	fc := face()
	first, err := Build(Input{Method: model.MethodFace, Face: fc})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, params, _ := mime.ParseMediaType(first.ContentType)
	// An image that happens to contain the previous boundary must still round trip.
	fc.Image = append([]byte("\r\n--"+params["boundary"]+"\r\n"), fc.Image...)
	second, err := Build(Input{Method: model.MethodFace, Face: fc})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if second.ContentType == first.ContentType {
		t.Errorf("boundary reused across builds: %q", second.ContentType)
	}
	if got := readForm(t, second)["file"].data; !bytes.Equal(got, fc.Image) {
		t.Errorf("file part = %q, want %q", got, fc.Image)
	}
}

func TestBuild_FaceWithoutCoordinatesSendsEmpty(t *testing.T) {
	req, err := Build(Input{Method: model.MethodFace, Face: face()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, k := range []string{"lat", "lng"} {
		vals, ok := req.Query[k]
		if !ok || len(vals) != 1 || vals[0] != "" {
			t.Errorf("query %s = %v, want single empty value", k, vals)
		}
	}
}

func TestBuild_QR(t *testing.T) {
	tests := []struct {
		name   string
		coords *model.Coordinates
		want   string
	}{
		{"with coordinates", coords(), `{"qr_token":"tok-1","lat":12.9,"lng":77.6}`},
		{"without coordinates", nil, `{"qr_token":"tok-1","lat":null,"lng":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &model.QRToken{Value: "tok-1", Source: model.SourceExternallyProvided}
			req, err := Build(Input{Method: model.MethodQR, Token: tok, Coordinates: tt.coords})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if req.Path != PathMarkQR {
				t.Errorf("Path = %q, want %q", req.Path, PathMarkQR)
			}
			if req.ContentType != "application/json" {
				t.Errorf("ContentType = %q, want application/json", req.ContentType)
			}
			if string(req.Body) != tt.want {
				t.Errorf("Body = %s, want %s", req.Body, tt.want)
			}
			var decoded map[string]any
			if err := json.Unmarshal(req.Body, &decoded); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if _, ok := decoded["file"]; ok {
				t.Error("qr body must not carry an image")
			}
		})
	}
}

func TestBuild_MissingArtifact(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"face nil", Input{Method: model.MethodFace}},
		{"face empty", Input{Method: model.MethodFace, Face: &model.FaceCapture{MimeType: "image/jpeg"}}},
		{"qr nil", Input{Method: model.MethodQR}},
		{"qr empty", Input{Method: model.MethodQR, Token: &model.QRToken{}}},
		{"qr blank", Input{Method: model.MethodQR, Token: &model.QRToken{Value: "   "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.in)
			if !errors.Is(err, fault.ErrMissingArtifact) {
				t.Errorf("err = %v, want MissingArtifact", err)
			}
		})
	}
}

func TestBuild_RefusesMixedArtifacts(t *testing.T) {
	tok := &model.QRToken{Value: "tok"}
	tests := []struct {
		name string
		in   Input
	}{
		{"both", Input{Method: model.MethodFace, Face: face(), Token: tok}},
		{"token for face", Input{Method: model.MethodFace, Token: tok}},
		{"face for qr", Input{Method: model.MethodQR, Face: face()}},
		{"unknown method", Input{Method: "pin", Token: tok}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.in)
			if !errors.Is(err, fault.ErrInvalidState) {
				t.Errorf("err = %v, want InvalidState", err)
			}
		})
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	fc := face()
	orig := append([]byte(nil), fc.Image...)
	req, err := Build(Input{Method: model.MethodFace, Face: fc})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := range req.Body {
		req.Body[i] = 0
	}
	if !bytes.Equal(fc.Image, orig) {
		t.Error("capture bytes changed")
	}
}
