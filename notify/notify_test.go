package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDeliver_Signed(t *testing.T) {
	var got Event
	var sigOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sigOK = Verify("s3cret", body, r.Header.Get(SignatureHeader))
		_ = json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	n := New(srv.URL, "s3cret", quiet(), nil)
	err := n.Deliver(context.Background(), &Event{Type: EventRunCompleted, RunID: "r1", Timestamp: 1})

	require.NoError(t, err)
	assert.True(t, sigOK)
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, EventRunCompleted, got.Type)
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, "", quiet(), nil).Deliver(context.Background(), &Event{Type: EventRunFailed})
	assert.ErrorContains(t, err, "502")
}

func TestDeliverAsync_Retries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	n := New(srv.URL, "", quiet(), nil)
	n.policy.InitialBackoff = time.Millisecond

	select {
	case err := <-n.DeliverAsync(&Event{Type: EventRunCompleted}):
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("delivery did not finish")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDeliverAsync_Disabled(t *testing.T) {
	n := New("", "", quiet(), nil)
	assert.False(t, n.Enabled())
	_, open := <-n.DeliverAsync(&Event{})
	assert.False(t, open)
}

func TestVerify(t *testing.T) {
	body := []byte(`{"type":"run.completed"}`)
	sig := Sign("k", body)
	assert.True(t, Verify("k", body, sig))
	assert.False(t, Verify("other", body, sig))
	assert.False(t, Verify("k", []byte("{}"), sig))
}
