package companion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"I'm here."}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAI(srv.Client(), srv.URL, "sk-test", "gpt-4.1-mini")
	reply, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hi"},
	})

	require.NoError(t, err)
	assert.Equal(t, Message{Role: RoleAssistant, Content: "I'm here."}, reply)
	assert.Equal(t, "gpt-4.1-mini", got.Model)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "hi", got.Messages[1].Content)
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.Client(), srv.URL, "k", "m").Complete(context.Background(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.True(t, statusErr.IsRateLimited())
	assert.Equal(t, "slow down", statusErr.Message)
}

func TestOpenAI_RawErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.Client(), srv.URL, "k", "m").Complete(context.Background(), nil)

	assert.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.Client(), srv.URL, "k", "m").Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrProvider)
}

func TestOpenAI_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewOpenAI(srv.Client(), srv.URL, "k", "m").Complete(ctx, nil)
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
