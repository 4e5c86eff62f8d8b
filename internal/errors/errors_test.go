package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "job not found"},
			want: "job not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeGeneration,
				Message: "generate hero_services",
				Cause:   errors.New("no JSON object in response"),
			},
			want: "generate hero_services: no JSON object in response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternal, "wrapped error")

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(wrapped, cause) = false, want true")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
	}{
		{"NotFound", NotFound("locality not found"), ErrCodeNotFound, "locality not found"},
		{"NotFoundf", NotFoundf("job %s not found", "j1"), ErrCodeNotFound, "job j1 not found"},
		{"Conflict", Conflict("already active"), ErrCodeConflict, "already active"},
		{"Conflictf", Conflictf("cannot %s a %s job", "start", "completed"), ErrCodeConflict, "cannot start a completed job"},
		{"Validation", Validation("city is required"), ErrCodeValidation, "city is required"},
		{"Validationf", Validationf("bad state %q", "XYZ"), ErrCodeValidation, `bad state "XYZ"`},
		{"Internal", Internal("boom"), ErrCodeInternal, "boom"},
		{"Internalf", Internalf("boom %d", 2), ErrCodeInternal, "boom 2"},
		{"percent without args", Validation("100% required"), ErrCodeValidation, "100% required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("state", "state must be two letters")
	if err.Field != "state" || GetField(err) != "state" {
		t.Errorf("ValidationField().Field = %v, want state", err.Field)
	}
	if !IsValidation(err) {
		t.Errorf("expected validation error")
	}
}

func TestWrap_NilError(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "wrapped error"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
	if err := Wrapf(nil, ErrCodeInternal, "wrapped %s", "error"); err != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", err)
	}
}

func TestPersistence(t *testing.T) {
	if Persistence(nil, "section") != nil {
		t.Fatalf("Persistence(nil) must be nil")
	}

	raw := errors.New("connection reset")
	err := Persistence(raw, "section main/hero_services")
	if !IsPersistence(err) {
		t.Errorf("expected persistence code, got %v", GetCode(err))
	}
	if !errors.Is(err, raw) {
		t.Errorf("persistence error must wrap cause")
	}

	internal := Internal("A database error occurred.")
	if !IsPersistence(Persistence(internal, "advance")) {
		t.Errorf("internal db errors should be reclassified as persistence")
	}

	notFound := NotFound("job not found")
	if got := Persistence(notFound, "advance"); !IsNotFound(got) {
		t.Errorf("classified errors keep their code, got %v", GetCode(got))
	}
}

func TestIsHelpers(t *testing.T) {
	wrapped := fmt.Errorf("run job: %w", Wrap(errors.New("x"), ErrCodeGeneration, "generate faqs_part1"))

	tests := []struct {
		name  string
		check func(error) bool
		err   error
		want  bool
	}{
		{"not found", IsNotFound, NotFound("x"), true},
		{"not found on conflict", IsNotFound, Conflict("x"), false},
		{"conflict", IsConflict, Conflict("x"), true},
		{"validation", IsValidation, Validation("x"), true},
		{"internal", IsInternal, Internal("x"), true},
		{"timeout", IsTimeout, Wrap(errors.New("x"), ErrCodeTimeout, "t"), true},
		{"canceled", IsCanceled, Wrap(errors.New("x"), ErrCodeCanceled, "c"), true},
		{"generation through fmt wrap", IsGeneration, wrapped, true},
		{"publish", IsPublish, Wrap(errors.New("x"), ErrCodePublish, "p"), true},
		{"standard error", IsNotFound, errors.New("plain"), false},
		{"nil error", IsConflict, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("check(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %q, want empty", got)
	}
	if got := GetCode(fmt.Errorf("outer: %w", Conflict("x"))); got != ErrCodeConflict {
		t.Errorf("GetCode(wrapped conflict) = %q", got)
	}
	if got := GetField(errors.New("plain")); got != "" {
		t.Errorf("GetField(plain) = %q, want empty", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{Conflict("x"), http.StatusConflict},
		{Validation("x"), http.StatusBadRequest},
		{Wrap(errors.New("x"), ErrCodeTimeout, "t"), http.StatusGatewayTimeout},
		{Wrap(errors.New("x"), ErrCodeGeneration, "g"), http.StatusBadGateway},
		{Wrap(errors.New("x"), ErrCodePublish, "p"), http.StatusBadGateway},
		{Internal("x"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
