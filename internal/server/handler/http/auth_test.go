package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	handler "github.com/atinyakov/FocusKeeper/internal/server/handler/http"
	"github.com/atinyakov/FocusKeeper/internal/service"
)

type fakeAuthService struct {
	RegisterFunc func(ctx context.Context, login, password string) error
	LoginFunc    func(ctx context.Context, login, password string) (string, error)
	LogoutFunc   func(ctx context.Context, token string) error
}

func (f *fakeAuthService) Register(ctx context.Context, login, password string) error {
	return f.RegisterFunc(ctx, login, password)
}
func (f *fakeAuthService) Login(ctx context.Context, login, password string) (string, error) {
	return f.LoginFunc(ctx, login, password)
}
func (f *fakeAuthService) Logout(ctx context.Context, token string) error {
	return f.LogoutFunc(ctx, token)
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
	}{
		{
			name:       "success",
			body:       `{"login":"alice","password":"pw"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "duplicate login",
			body:       `{"login":"alice","password":"pw"}`,
			svcErr:     errors.New("login alice is already taken"),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "empty password",
			body:       `{"login":"alice","password":""}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"login":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &handler.AuthHandler{AuthService: &fakeAuthService{
				RegisterFunc: func(context.Context, string, string) error {
					return tt.svcErr
				},
			}}

			req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Register(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d; want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestLoginHandler_ReturnsToken(t *testing.T) {
	h := &handler.AuthHandler{AuthService: &fakeAuthService{
		LoginFunc: func(ctx context.Context, login, password string) (string, error) {
			if login != "alice" || password != "pw" {
				t.Errorf("credentials = %q/%q; want alice/pw", login, password)
			}
			return "tok-1", nil
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"login":"alice","password":"pw"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"token":"tok-1"`) {
		t.Errorf("body = %s; want it to carry the token", rec.Body.String())
	}
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	h := &handler.AuthHandler{AuthService: &fakeAuthService{
		LoginFunc: func(context.Context, string, string) (string, error) {
			return "", service.ErrInvalidCredentials
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"login":"alice","password":"bad"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want 401", rec.Code)
	}
}

func TestLogoutHandler_DeletesPresentedToken(t *testing.T) {
	var deleted string
	h := &handler.AuthHandler{AuthService: &fakeAuthService{
		LogoutFunc: func(ctx context.Context, token string) error {
			deleted = token
			return nil
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d; want 204", rec.Code)
	}
	if deleted != "tok-1" {
		t.Errorf("deleted token = %q; want tok-1", deleted)
	}
}
