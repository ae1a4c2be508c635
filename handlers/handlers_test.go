package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoTrackAPI/services"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrInvalidInput, http.StatusBadRequest},
		{services.ErrInsufficientPoints, http.StatusPaymentRequired},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrAlreadyJoined, http.StatusConflict},
		{services.ErrAlreadyEarned, http.StatusConflict},
		{errors.New("something else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForError(tc.err), "error: %v", tc.err)
	}
}

func TestStatusForErrorUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("redeem: %w", services.ErrInsufficientPoints)
	assert.Equal(t, http.StatusPaymentRequired, statusForError(wrapped))
}

func TestRespondWithJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	respondWithJSON(rr, http.StatusCreated, map[string]int{"points": 10})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 10, body["points"])
}

func TestRespondWithError(t *testing.T) {
	rr := httptest.NewRecorder()
	respondWithError(rr, http.StatusNotFound, "Profile not found")

	assert.Equal(t, http.StatusNotFound, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Profile not found", body["error"])
}

func signedWebhookRequest(t *testing.T, secret string, body []byte) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
	req.Header.Set("svix-id", "msg_test")
	req.Header.Set("svix-timestamp", "1700000000")

	signedContent := fmt.Sprintf("%s.%s.%s", "msg_test", "1700000000", string(body))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedContent))
	req.Header.Set("svix-signature", "v1,"+hex.EncodeToString(mac.Sum(nil)))

	return req
}

func TestVerifyClerkSignatureValid(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test")

	body := []byte(`{"type":"user.created","data":{"id":"user_123"}}`)
	req := signedWebhookRequest(t, "whsec_test", body)

	assert.True(t, verifyClerkSignature(req, body))
}

func TestVerifyClerkSignatureWrongSecret(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test")

	body := []byte(`{"type":"user.created","data":{"id":"user_123"}}`)
	req := signedWebhookRequest(t, "whsec_other", body)

	assert.False(t, verifyClerkSignature(req, body))
}

func TestVerifyClerkSignatureMissingHeaders(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test")

	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))

	assert.False(t, verifyClerkSignature(req, body))
}

func TestVerifyClerkSignatureSkippedWithoutSecret(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "")

	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))

	assert.True(t, verifyClerkSignature(req, body))
}
