package capability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNarrationClient(t *testing.T, url string) *HTTPClient[NarrationInput, NarrationOutput] {
	t.Helper()
	c, err := NewHTTPClient[NarrationInput, NarrationOutput](Options{
		Operation: "narration",
		BaseURL:   url,
		APIKey:    "secret",
		Timeout:   2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestHTTPClient_Invoke(t *testing.T) {
	var got NarrationInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"tts-1","status":"queued"}`))
	}))
	defer srv.Close()

	h, err := newNarrationClient(t, srv.URL).Invoke(context.Background(), NarrationInput{Text: "hello", VoiceID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, Handle("tts-1"), h)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, "v1", got.VoiceID)
}

func TestHTTPClient_InvokeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"quota exhausted"}`))
	}))
	defer srv.Close()

	_, err := newNarrationClient(t, srv.URL).Invoke(context.Background(), NarrationInput{Text: "hello"})
	require.Error(t, err)

	var subErr *RemoteSubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, http.StatusPaymentRequired, subErr.StatusCode)
	assert.Equal(t, "quota exhausted", subErr.Message)
}

func TestHTTPClient_InvokeWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newNarrationClient(t, srv.URL).Invoke(context.Background(), NarrationInput{Text: "hello"})
	var subErr *RemoteSubmissionError
	assert.True(t, errors.As(err, &subErr))
}

func TestHTTPClient_Poll(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/tts-1", r.URL.Path)
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			_, _ = w.Write([]byte(`{"id":"tts-1","status":"processing"}`))
		default:
			_, _ = w.Write([]byte(`{"id":"tts-1","status":"succeeded","output":{"audio_url":"https://cdn.example.com/a.mp3","duration_seconds":3.2}}`))
		}
	}))
	defer srv.Close()

	c := newNarrationClient(t, srv.URL)
	ctx := context.Background()

	assert.True(t, c.Poll(ctx, "tts-1").IsPending(), "5xx is transient")
	assert.True(t, c.Poll(ctx, "tts-1").IsPending())

	res := c.Poll(ctx, "tts-1")
	require.True(t, res.IsDone())
	assert.Equal(t, "https://cdn.example.com/a.mp3", res.Value.AudioURL)
	assert.Equal(t, 3.2, res.Value.DurationSeconds)
}

func TestHTTPClient_PollTransportErrorIsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := newNarrationClient(t, url).Poll(context.Background(), "tts-1")
	assert.True(t, res.IsPending())
}

func TestHTTPClient_PollUnknownHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := newNarrationClient(t, srv.URL).Poll(context.Background(), "gone")
	assert.True(t, res.IsFailed())
	assert.Contains(t, res.Reason, "unknown handle")
}

func TestDecodeRaw(t *testing.T) {
	tests := []struct {
		name  string
		raw   RawResult
		state PollState
	}{
		{name: "queued", raw: RawResult{Status: "queued"}, state: StatePending},
		{name: "empty status", raw: RawResult{}, state: StatePending},
		{name: "done", raw: RawResult{Status: "done", Output: json.RawMessage(`{"image_url":"i.png"}`)}, state: StateDone},
		{name: "done without output", raw: RawResult{Status: "done"}, state: StateFailed},
		{name: "done with bad output", raw: RawResult{Status: "done", Output: json.RawMessage(`[1,2]`)}, state: StateFailed},
		{name: "failed", raw: RawResult{Status: "failed", Error: "nsfw"}, state: StateFailed},
		{name: "unknown", raw: RawResult{Status: "exploded"}, state: StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := DecodeRaw[ImageOutput]("image", tt.raw)
			assert.Equal(t, tt.state, res.State)
			if res.IsFailed() {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient[ImageInput, ImageOutput](Options{Operation: "image"})
	assert.Error(t, err)
}
