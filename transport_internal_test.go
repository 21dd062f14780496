package userpool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportCallSetsWireHeaders(t *testing.T) {
	var gotContentType, gotTarget string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotTarget = r.Header.Get("X-Amz-Target")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := DefaultConfig("us-west-2_ABC123", "client-id")
	cfg.Endpoint = server.URL

	transport := newTransport(cfg, defLogger{})
	err := transport.Call(context.Background(), ActionInitiateAuth, map[string]string{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "application/x-amz-json-1.1", gotContentType)
	assert.Equal(t, "AWSCognitoIdentityProviderService.InitiateAuth", gotTarget)
}

func TestTransportCallProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"__type":"com.amazonaws.cognito#NotAuthorizedException","message":"Incorrect username or password."}`))
	}))
	defer server.Close()

	cfg := DefaultConfig("us-west-2_ABC123", "client-id")
	cfg.Endpoint = server.URL

	transport := newTransport(cfg, defLogger{})
	err := transport.Call(context.Background(), ActionInitiateAuth, map[string]string{}, nil)
	require.Error(t, err)

	assert.Equal(t, CodeNotAuthorized, ProviderCode(err))
	assert.True(t, IsProviderCode(err, CodeNotAuthorized))
	assert.False(t, IsTransportError(err))
	assert.Contains(t, err.Error(), "Incorrect username or password.")
}

func TestTransportCallNetworkFailure(t *testing.T) {
	cfg := DefaultConfig("us-west-2_ABC123", "client-id")
	// Nothing listens here.
	cfg.Endpoint = "http://127.0.0.1:1/"

	transport := newTransport(cfg, defLogger{})
	err := transport.Call(context.Background(), ActionInitiateAuth, map[string]string{}, nil)
	require.Error(t, err)

	assert.True(t, IsTransportError(err))
	assert.Empty(t, ProviderCode(err))
}

func TestDecodeProviderFailure(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    string
		wantMessage string
	}{
		{
			name:        "fully qualified type",
			body:        `{"__type":"com.amazonaws.cognito#UserNotFoundException","message":"User does not exist."}`,
			wantCode:    "UserNotFoundException",
			wantMessage: "User does not exist.",
		},
		{
			name:        "bare type",
			body:        `{"__type":"UsernameExistsException","message":"already taken"}`,
			wantCode:    "UsernameExistsException",
			wantMessage: "already taken",
		},
		{
			name:        "capitalized message key",
			body:        `{"__type":"TooManyRequestsException","Message":"slow down"}`,
			wantCode:    "TooManyRequestsException",
			wantMessage: "slow down",
		},
		{
			name:        "non json body",
			body:        "Bad Gateway",
			wantCode:    "",
			wantMessage: "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, message := decodeProviderFailure([]byte(tt.body))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}
