package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"attendclient/internal/backend"
	"attendclient/internal/fault"
	"attendclient/internal/model"
)

type fakeBackend struct {
	reg       *backend.Registration
	login     [2]string
	forgotTok string
	reset     [2]string
	err       error
}

func (f *fakeBackend) Register(_ context.Context, reg backend.Registration) error {
	f.reg = &reg
	return f.err
}

func (f *fakeBackend) Login(_ context.Context, u, p string) (*model.UserProfile, error) {
	f.login = [2]string{u, p}
	if f.err != nil {
		return nil, f.err
	}
	return &model.UserProfile{Username: u, FullName: "Asha"}, nil
}

func (f *fakeBackend) Forgot(_ context.Context, u string) (string, error) {
	return f.forgotTok, f.err
}

func (f *fakeBackend) Reset(_ context.Context, tok, pw string) error {
	f.reset = [2]string{tok, pw}
	return f.err
}

func bindJSON(body string) func(any) error {
	return func(v any) error { return json.Unmarshal([]byte(body), v) }
}

func TestDecode(t *testing.T) {
	tests := []struct {
		mode Mode
		body string
		want Form
	}{
		{ModeLogin, `{"username":"u","password":"p"}`, LoginForm{Username: "u", Password: "p"}},
		{ModeRegister, `{"full_name":"A","username":"u","password":"p","student_id":"S1"}`, RegisterForm{FullName: "A", Username: "u", Password: "p", StudentID: "S1"}},
		{ModeForgot, `{"username":"u"}`, ForgotForm{Username: "u"}},
		{ModeReset, `{"token":"t","new_password":"n"}`, ResetForm{Token: "t", NewPassword: "n"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got, err := Decode(tt.mode, bindJSON(tt.body))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %#v, want %#v", got, tt.want)
			}
			if got.Mode() != tt.mode {
				t.Errorf("Mode = %q, want %q", got.Mode(), tt.mode)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode("sso", bindJSON(`{}`)); !errors.Is(err, fault.ErrInvalidInput) {
		t.Errorf("unknown mode err = %v", err)
	}
	if _, err := Decode(ModeLogin, bindJSON(`{`)); !errors.Is(err, fault.ErrInvalidInput) {
		t.Errorf("bad body err = %v", err)
	}
}

func TestSubmit_Login(t *testing.T) {
	b := &fakeBackend{}
	res, err := Submit(context.Background(), b, LoginForm{Username: " u ", Password: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if b.login != [2]string{"u", "p"} {
		t.Errorf("login args = %v", b.login)
	}
	if res.Profile == nil || res.Profile.FullName != "Asha" {
		t.Errorf("profile = %+v", res.Profile)
	}
}

func TestSubmit_RegisterMovesToLogin(t *testing.T) {
	b := &fakeBackend{}
	res, err := Submit(context.Background(), b, RegisterForm{FullName: "A", Username: "u", Password: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != MsgRegistered || res.Next != ModeLogin {
		t.Errorf("result = %+v", res)
	}
	if b.reg.StudentID != nil {
		t.Errorf("student_id = %q, want nil", *b.reg.StudentID)
	}

	_, _ = Submit(context.Background(), b, RegisterForm{FullName: "A", Username: "u", Password: "p", StudentID: "S1"})
	if b.reg.StudentID == nil || *b.reg.StudentID != "S1" {
		t.Errorf("student_id not forwarded")
	}
}

func TestSubmit_ForgotThenReset(t *testing.T) {
	b := &fakeBackend{forgotTok: "r1"}
	res, err := Submit(context.Background(), b, ForgotForm{Username: "u"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ResetToken != "r1" || res.Next != ModeReset {
		t.Errorf("forgot result = %+v", res)
	}

	res, err = Submit(context.Background(), b, ResetForm{Token: res.ResetToken, NewPassword: "n"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != MsgPasswordDone || res.Next != ModeLogin {
		t.Errorf("reset result = %+v", res)
	}
	if b.reset != [2]string{"r1", "n"} {
		t.Errorf("reset args = %v", b.reset)
	}
}

func TestSubmit_ValidationAndBackendErrors(t *testing.T) {
	b := &fakeBackend{}
	if _, err := Submit(context.Background(), b, LoginForm{Username: "u"}); !errors.Is(err, fault.ErrInvalidInput) {
		t.Errorf("missing password err = %v", err)
	}
	if b.login != [2]string{} {
		t.Error("backend called for an invalid form")
	}

	b.err = fault.E(fault.TransportError, "backend.login", "Invalid credentials")
	_, err := Submit(context.Background(), b, LoginForm{Username: "u", Password: "x"})
	if fault.Message(err) != "Invalid credentials" {
		t.Errorf("message = %q", fault.Message(err))
	}
}
