package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"attendclient/internal/fault"
	"attendclient/internal/model"
)

// Registration is the payload of POST /auth/register.
type Registration struct {
	FullName     string  `json:"full_name"`
	Department   string  `json:"department"`
	ClassSection string  `json:"class_section"`
	Username     string  `json:"username"`
	Password     string  `json:"password"`
	StudentID    *string `json:"student_id"`
}

// Register creates a pending account awaiting approval.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.doJSON(ctx, call{op: "register", method: http.MethodPost, path: "/auth/register"}, reg, nil)
}

// Login exchanges credentials for a bearer token and stores the resulting
// session. The profile is read from the same response.
func (c *Client) Login(ctx context.Context, username, password string) (*model.UserProfile, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, fault.Wrap(fault.Other, "backend.login", err)
	}
	data, err := c.do(ctx, call{op: "login", method: http.MethodPost, path: "/auth/login", contentType: "application/json", body: body})
	if err != nil {
		return nil, err
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	var profile model.UserProfile
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fault.Wrap(fault.TransportError, "backend.login", err)
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fault.Wrap(fault.TransportError, "backend.login", err)
	}
	if tok.AccessToken == "" {
		return nil, fault.E(fault.TransportError, "backend.login", "login response carried no access_token")
	}
	if profile.Username == "" {
		profile.Username = username
	}
	if err := c.Sessions.Set(tok.AccessToken, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Forgot requests a password reset token. Demo backends return the token
// directly; otherwise the result is empty.
func (c *Client) Forgot(ctx context.Context, username string) (string, error) {
	var out struct {
		ResetToken string `json:"reset_token"`
	}
	err := c.doJSON(ctx, call{op: "forgot", method: http.MethodPost, path: "/auth/forgot"}, map[string]string{"username": username}, &out)
	if err != nil {
		return "", err
	}
	return out.ResetToken, nil
}

// Reset consumes a reset token and sets a new password.
func (c *Client) Reset(ctx context.Context, token, newPassword string) error {
	in := map[string]string{"token": token, "new_password": newPassword}
	return c.doJSON(ctx, call{op: "reset", method: http.MethodPost, path: "/auth/reset"}, in, nil)
}

// Me re-fetches the profile and replaces it in the session.
func (c *Client) Me(ctx context.Context) (*model.UserProfile, error) {
	var p model.UserProfile
	if err := c.doJSON(ctx, call{op: "me", method: http.MethodGet, path: "/me", auth: true}, nil, &p); err != nil {
		return nil, err
	}
	c.Sessions.SetProfile(&p)
	return &p, nil
}
