// Package submission turns a captured artifact into a mark-attendance request.
package submission

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"attendclient/internal/fault"
	"attendclient/internal/model"
)

const (
	PathMarkFace = "/attendance/mark/face"
	PathMarkQR   = "/attendance/mark/qr"

	faceField    = "file"
	faceFilename = "face.jpg"
)

// Input is what the orchestrator hands over at dispatch time. Exactly one of
// Face and Token must match Method.
type Input struct {
	Method      model.Method
	Face        *model.FaceCapture
	Token       *model.QRToken
	Coordinates *model.Coordinates
}

// Request describes one POST to the backend.
type Request struct {
	Method      model.Method
	Path        string
	Query       url.Values
	ContentType string
	Body        []byte
}

// Build produces the request for in. It performs no I/O and does not modify in.
func Build(in Input) (Request, error) {
	const op = "submission.Build"
	if in.Face != nil && in.Token != nil {
		return Request{}, fault.E(fault.InvalidState, op, "submission carries both a face capture and a qr token")
	}
	switch in.Method {
	case model.MethodFace:
		if in.Token != nil {
			return Request{}, fault.E(fault.InvalidState, op, "qr token given for a face submission")
		}
		if in.Face.Empty() {
			return Request{}, fault.E(fault.MissingArtifact, op, "no face image captured")
		}
		return buildFace(in.Face, in.Coordinates)
	case model.MethodQR:
		if in.Face != nil {
			return Request{}, fault.E(fault.InvalidState, op, "face capture given for a qr submission")
		}
		if in.Token == nil || strings.TrimSpace(in.Token.Value) == "" {
			return Request{}, fault.E(fault.MissingArtifact, op, "qr token is empty")
		}
		return buildQR(in.Token, in.Coordinates)
	default:
		return Request{}, fault.E(fault.InvalidState, op, "unknown method "+strconv.Quote(string(in.Method)))
	}
}

func buildFace(face *model.FaceCapture, coords *model.Coordinates) (Request, error) {
	lat, lng := coordStrings(coords)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	mime := face.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+faceField+`"; filename="`+faceFilename+`"`)
	h.Set("Content-Type", mime)
	part, err := w.CreatePart(h)
	if err != nil {
		return Request{}, err
	}
	if _, err := part.Write(face.Image); err != nil {
		return Request{}, err
	}
	if err := w.WriteField("lat", lat); err != nil {
		return Request{}, err
	}
	if err := w.WriteField("lng", lng); err != nil {
		return Request{}, err
	}
	if err := w.Close(); err != nil {
		return Request{}, err
	}

	return Request{
		Method:      model.MethodFace,
		Path:        PathMarkFace,
		Query:       url.Values{"lat": {lat}, "lng": {lng}},
		ContentType: w.FormDataContentType(),
		Body:        buf.Bytes(),
	}, nil
}

type qrBody struct {
	QRToken string   `json:"qr_token"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

func buildQR(token *model.QRToken, coords *model.Coordinates) (Request, error) {
	body := qrBody{QRToken: token.Value}
	if coords != nil {
		lat, lng := coords.Latitude, coords.Longitude
		body.Lat, body.Lng = &lat, &lng
	}
	data, err := json.Marshal(body)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Method:      model.MethodQR,
		Path:        PathMarkQR,
		ContentType: "application/json",
		Body:        data,
	}, nil
}

// coordStrings renders absent coordinates as empty values.
func coordStrings(c *model.Coordinates) (string, string) {
	if c == nil {
		return "", ""
	}
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64), strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}
