package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"attendclient/internal/fault"
	"attendclient/internal/model"
	"attendclient/internal/submission"
)

// Verdict is the backend's answer to a mark-attendance request.
type Verdict struct {
	Present bool
	Status  model.Status
	Message string
	Raw     json.RawMessage
}

type markResponse struct {
	Status  string `json:"status"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// businessStatus lists non-2xx codes the backend uses for legitimate denials
// (outside geofence, face mismatch, invalid or expired token).
var businessStatus = map[int]bool{
	http.StatusBadRequest:          true,
	http.StatusForbidden:           true,
	http.StatusConflict:            true,
	http.StatusUnprocessableEntity: true,
}

// Mark dispatches a built submission. A denial is a Verdict, not an error;
// errors are transport or credential failures.
func (c *Client) Mark(ctx context.Context, req submission.Request) (Verdict, error) {
	data, err := c.do(ctx, call{
		op:          "mark_" + string(req.Method),
		method:      http.MethodPost,
		path:        req.Path,
		query:       req.Query,
		contentType: req.ContentType,
		body:        req.Body,
		auth:        true,
	})
	if err != nil {
		var se *StatusError
		if fault.KindOf(err) == fault.TransportError && errors.As(err, &se) && businessStatus[se.Code] && businessDetail(data) != "" {
			return Verdict{Status: model.StatusRejected, Message: se.Detail, Raw: rawCopy(data)}, nil
		}
		return Verdict{}, err
	}

	var out markResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Verdict{}, fault.E(fault.TransportError, "backend.Mark", "malformed mark response")
	}
	if model.Status(out.Status) == model.StatusPresent {
		return Verdict{Present: true, Status: model.StatusPresent, Message: out.Status, Raw: rawCopy(data)}, nil
	}
	msg := firstNonEmpty(out.Detail, out.Message, out.Status, "not marked present")
	return Verdict{Status: model.StatusRejected, Message: msg, Raw: rawCopy(data)}, nil
}

// MintSelfQR asks the backend for a token bound to this session and coords.
func (c *Client) MintSelfQR(ctx context.Context, coords *model.Coordinates) (model.QRToken, error) {
	in := struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}{}
	if coords != nil {
		lat, lng := coords.Latitude, coords.Longitude
		in.Lat, in.Lng = &lat, &lng
	}
	var out struct {
		QRToken string `json:"qr_token"`
	}
	if err := c.doJSON(ctx, call{op: "qr_self", method: http.MethodPost, path: "/qr/self", auth: true}, in, &out); err != nil {
		return model.QRToken{}, err
	}
	if out.QRToken == "" {
		return model.QRToken{}, fault.E(fault.TransportError, "backend.MintSelfQR", "response carried no qr_token")
	}
	return model.QRToken{Value: out.QRToken, Source: model.SourceSelfGenerated}, nil
}

// History fetches the attendance records of the session, most recent first.
func (c *Client) History(ctx context.Context) ([]model.AttendanceRecord, error) {
	var out struct {
		Items []model.AttendanceRecord `json:"items"`
	}
	if err := c.doJSON(ctx, call{op: "history", method: http.MethodGet, path: "/attendance/history", auth: true}, nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []model.AttendanceRecord{}
	}
	return out.Items, nil
}

// UploadPhoto registers face as the reference image of the signed-in user.
func (c *Client) UploadPhoto(ctx context.Context, face model.FaceCapture) (string, error) {
	if face.Empty() {
		return "", fault.E(fault.MissingArtifact, "backend.UploadPhoto", "no face image captured")
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	mime := face.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="face.jpg"`)
	h.Set("Content-Type", mime)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fault.Wrap(fault.Other, "backend.UploadPhoto", err)
	}
	if _, err := part.Write(face.Image); err != nil {
		return "", fault.Wrap(fault.Other, "backend.UploadPhoto", err)
	}
	if err := w.Close(); err != nil {
		return "", fault.Wrap(fault.Other, "backend.UploadPhoto", err)
	}

	data, err := c.do(ctx, call{
		op:          "photo",
		method:      http.MethodPost,
		path:        "/me/photo",
		contentType: w.FormDataContentType(),
		body:        buf.Bytes(),
		auth:        true,
	})
	if err != nil {
		return "", err
	}
	// The upload succeeded; a body that is not a status object carries no message.
	var out markResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "saved", nil
	}
	return firstNonEmpty(out.Status, out.Detail, out.Message, "saved"), nil
}

// businessDetail returns the detail of a denial only when it is a plain
// message. Schema validation lists are not business denials.
func businessDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err != nil {
		return ""
	}
	return s
}

func rawCopy(data []byte) json.RawMessage {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), data...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
