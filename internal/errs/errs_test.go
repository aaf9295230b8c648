package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthMessageKnownCodes(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{CodeInvalidCredential, "Invalid email or password. Please check your credentials."},
		{CodeUserNotFound, "No account found with this email. Please sign up first."},
		{CodeWrongPassword, "Incorrect password. Please try again."},
		{CodeEmailAlreadyInUse, "This email is already registered. Please sign in instead."},
		{CodeWeakPassword, "Password should be at least 6 characters."},
		{CodeInvalidEmail, "Please enter a valid email address."},
		{CodeOperationForbidden, "Email and password authentication is not enabled."},
		{CodeTooManyRequests, "Too many login attempts. Please try again later."},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := New(KindAuth, tc.code, "")
			assert.Equal(t, tc.want, AuthMessage(err))
		})
	}
}

func TestAuthMessageUnknownCodeFallsBackToTemplate(t *testing.T) {
	err := New(KindAuth, "auth/network-request-failed", "")
	assert.Equal(t, "Authentication error: auth/network-request-failed", AuthMessage(err))
}

func TestAuthMessageWithoutCode(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred. Please try again.",
		AuthMessage(errors.New("plain failure")))
}

func TestKindOfAndCodeOf(t *testing.T) {
	err := New(KindAuth, CodeWeakPassword, "too short")
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, CodeWeakPassword, CodeOf(err))

	// 包装之后仍能识别
	wrapped := fmt.Errorf("register: %w", err)
	assert.Equal(t, KindAuth, KindOf(wrapped))
	assert.Equal(t, CodeWeakPassword, CodeOf(wrapped))

	assert.Equal(t, KindInternal, KindOf(errors.New("anything")))
	assert.Empty(t, CodeOf(errors.New("anything")))
}

func TestWrapPreservesUnderlyingError(t *testing.T) {
	inner := errors.New("connection reset")
	err := Wrap(KindStore, inner)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, KindStore, KindOf(err))
	assert.Equal(t, "connection reset", err.Error())
}

func TestErrorStringForms(t *testing.T) {
	assert.Equal(t, "auth/weak-password: too short", New(KindAuth, "auth/weak-password", "too short").Error())
	assert.Equal(t, "too short", New(KindAuth, "", "too short").Error())
	assert.Equal(t, "auth/weak-password", New(KindAuth, "auth/weak-password", "").Error())
	assert.Equal(t, "auth", New(KindAuth, "", "").Error())
}
