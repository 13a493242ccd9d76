package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Its-donkey/e-verify/internal/ui/model"
)

type recordedTrip struct {
	path   string
	result string
}

type stubRecorder struct {
	mu    sync.Mutex
	trips []recordedTrip
}

func (r *stubRecorder) ObserveRoundTrip(path, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trips = append(r.trips, recordedTrip{path: path, result: result})
}

func TestSendPostsJSONAndDecodesEnvelope(t *testing.T) {
	var gotBody model.EmailRequest
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/forgot-password", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "message": "Email sent"})
	}))
	defer srv.Close()

	rec := &stubRecorder{}
	client := NewClient(srv.URL+"/", srv.Client())
	client.Recorder = rec

	resp, err := client.Send(context.Background(), Request{Path: "/forgot-password", Payload: model.EmailRequest{Email: "a@b.co"}})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Email sent", resp.Message)
	assert.Equal(t, "a@b.co", gotBody.Email)
	assert.Equal(t, 1, calls)
	require.Len(t, rec.trips, 1)
	assert.Equal(t, recordedTrip{path: "/forgot-password", result: "ok"}, rec.trips[0])
}

func TestSendDecodesErrorStatusBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Email is required."}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, nil).Send(context.Background(), Request{Path: "resend-verification"})
	require.NoError(t, err)
	assert.Empty(t, resp.Status)
	assert.Equal(t, "Email is required.", resp.Message)
}

func TestSendConnectionRefusedIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	rec := &stubRecorder{}
	client := NewClient(addr, nil)
	client.Recorder = rec
	_, err := client.Send(context.Background(), Request{Path: "/verify", Payload: model.VerifyRequest{Token: "t"}})
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, GenericErrorMessage, te.UserMessage())
	assert.True(t, IsTransportError(err))
	require.Len(t, rec.trips, 1)
	assert.Equal(t, "transport_error", rec.trips[0].result)
}

func TestSendNonJSONBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html><head><title>502 Bad Gateway</title></head><body></body></html>`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Send(context.Background(), Request{Path: "/forgot-password"})
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, ErrNotJSON)
	assert.Equal(t, "html: 502 Bad Gateway", te.Detail)
}

func TestSendMalformedJSONIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Send(context.Background(), Request{Path: "/reset-password"})
	assert.ErrorIs(t, err, ErrNotJSON)
	assert.True(t, IsTransportError(err))
}

func TestDescribeBody(t *testing.T) {
	assert.Equal(t, "empty body", describeBody("", nil))
	assert.Equal(t, "html: Oops", describeBody("text/html", []byte("<h1>Oops</h1>")))
	assert.Equal(t, "plain text", describeBody("text/plain", []byte("plain text")))
}
