// Package authflow implements the four modes of the sign-in screen.
package authflow

import (
	"context"
	"strings"

	"attendclient/internal/backend"
	"attendclient/internal/fault"
	"attendclient/internal/model"
)

// Mode selects one of the sign-in screen forms.
type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
	ModeForgot   Mode = "forgot"
	ModeReset    Mode = "reset"
)

const (
	MsgRegistered   = "Registered! Await approval by faculty/admin."
	MsgForgot       = "If the user exists, a reset token is returned below for demo."
	MsgPasswordDone = "Password updated!"
)

// Form is one of LoginForm, RegisterForm, ForgotForm or ResetForm.
type Form interface {
	Mode() Mode
	Validate() error
}

type LoginForm struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterForm struct {
	FullName     string `json:"full_name" binding:"required"`
	Department   string `json:"department"`
	ClassSection string `json:"class_section"`
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	StudentID    string `json:"student_id"`
}

type ForgotForm struct {
	Username string `json:"username" binding:"required"`
}

type ResetForm struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (LoginForm) Mode() Mode    { return ModeLogin }
func (RegisterForm) Mode() Mode { return ModeRegister }
func (ForgotForm) Mode() Mode   { return ModeForgot }
func (ResetForm) Mode() Mode    { return ModeReset }

func (f LoginForm) Validate() error {
	return required("login", "username", f.Username, "password", f.Password)
}

func (f RegisterForm) Validate() error {
	return required("register", "full_name", f.FullName, "username", f.Username, "password", f.Password)
}

func (f ForgotForm) Validate() error {
	return required("forgot", "username", f.Username)
}

func (f ResetForm) Validate() error {
	return required("reset", "token", f.Token, "new_password", f.NewPassword)
}

// required takes name/value pairs.
func required(mode string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fault.E(fault.InvalidInput, "authflow."+mode, pairs[i]+" is required")
		}
	}
	return nil
}

// Decode fills the form for mode using bind, typically gin's ShouldBindJSON.
func Decode(mode Mode, bind func(any) error) (Form, error) {
	var f Form
	var err error
	switch mode {
	case ModeLogin:
		var v LoginForm
		err = bind(&v)
		f = v
	case ModeRegister:
		var v RegisterForm
		err = bind(&v)
		f = v
	case ModeForgot:
		var v ForgotForm
		err = bind(&v)
		f = v
	case ModeReset:
		var v ResetForm
		err = bind(&v)
		f = v
	default:
		return nil, fault.E(fault.InvalidInput, "authflow.Decode", "unknown mode "+string(mode))
	}
	if err != nil {
		return nil, fault.Wrap(fault.InvalidInput, "authflow.Decode", err)
	}
	return f, nil
}

// Backend is the subset of the backend client the sign-in screen uses.
type Backend interface {
	Register(ctx context.Context, reg backend.Registration) error
	Login(ctx context.Context, username, password string) (*model.UserProfile, error)
	Forgot(ctx context.Context, username string) (string, error)
	Reset(ctx context.Context, token, newPassword string) error
}

// Result describes what the screen shows after a submitted form.
type Result struct {
	Mode       Mode               `json:"mode"`
	Next       Mode               `json:"next,omitempty"`
	Message    string             `json:"message,omitempty"`
	ResetToken string             `json:"reset_token,omitempty"`
	Profile    *model.UserProfile `json:"profile,omitempty"`
}

// Submit validates f and performs its backend call.
func Submit(ctx context.Context, b Backend, f Form) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}
	res := Result{Mode: f.Mode()}
	switch v := f.(type) {
	case LoginForm:
		p, err := b.Login(ctx, strings.TrimSpace(v.Username), v.Password)
		if err != nil {
			return Result{}, err
		}
		res.Profile = p
	case RegisterForm:
		reg := backend.Registration{
			FullName:     v.FullName,
			Department:   v.Department,
			ClassSection: v.ClassSection,
			Username:     strings.TrimSpace(v.Username),
			Password:     v.Password,
		}
		if id := strings.TrimSpace(v.StudentID); id != "" {
			reg.StudentID = &id
		}
		if err := b.Register(ctx, reg); err != nil {
			return Result{}, err
		}
		res.Message = MsgRegistered
		res.Next = ModeLogin
	case ForgotForm:
		tok, err := b.Forgot(ctx, strings.TrimSpace(v.Username))
		if err != nil {
			return Result{}, err
		}
		res.Message = MsgForgot
		res.ResetToken = tok
		if tok != "" {
			res.Next = ModeReset
		}
	case ResetForm:
		if err := b.Reset(ctx, v.Token, v.NewPassword); err != nil {
			return Result{}, err
		}
		res.Message = MsgPasswordDone
		res.Next = ModeLogin
	default:
		return Result{}, fault.E(fault.InvalidState, "authflow.Submit", "unknown form")
	}
	return res, nil
}
