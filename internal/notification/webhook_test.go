package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookGatewayPostsEvents(t *testing.T) {
	var got []Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		got = append(got, ev)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gw := NewWebhookGateway(srv.URL)
	ctx := context.Background()

	require.NoError(t, gw.NotifySubmitted(ctx, "req-1", "student-1"))
	require.NoError(t, gw.NotifyApproved(ctx, "req-1", "student-1", "registrar", true))
	require.NoError(t, gw.NotifyRejected(ctx, "req-1", "student-1", "cashier", "unpaid balance"))
	require.NoError(t, gw.NotifyEscalated(ctx, "req-1", 2, 6))

	require.Len(t, got, 4)
	assert.Equal(t, EventSubmitted, got[0].Type)
	assert.Equal(t, "student-1", got[0].RequesterID)
	assert.Equal(t, EventApproved, got[1].Type)
	assert.True(t, got[1].IsCompleted)
	assert.Equal(t, "unpaid balance", got[2].Reason)
	assert.Equal(t, EventEscalated, got[3].Type)
	assert.Equal(t, 2, got[3].Level)
	assert.Equal(t, 6, got[3].DaysPending)
}

func TestWebhookGatewayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := NewWebhookGateway(srv.URL)
	err := gw.NotifySubmitted(context.Background(), "req-1", "student-1")
	assert.ErrorContains(t, err, "502")
}

func TestWebhookGatewayUnreachable(t *testing.T) {
	gw := NewWebhookGateway("http://127.0.0.1:1/notify")
	err := gw.NotifySubmitted(context.Background(), "req-1", "student-1")
	assert.Error(t, err)
}
