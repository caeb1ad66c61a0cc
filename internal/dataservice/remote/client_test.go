package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"psvs-console-be/pkg/timeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   []byte
}

func newUpstream(t *testing.T, routes map[string]string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			body:   body,
		})
		resp, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_ReadsAndNormalizes(t *testing.T) {
	srv, calls := newUpstream(t, map[string]string{
		"GET /clients/c1/sessions":               `{"sessions": [{"id": "s1", "started_at": "2024-05-01T08:00:00Z"}]}`,
		"GET /sessions/s1/messages":              `[{"id": "m1", "sender": "user", "text": "hi", "created_at": "2024-05-01T08:01:00Z", "psvs": {"stress": 3, "energy": "positive"}}]`,
		"GET /sessions/s1/mini-sessions":         `[]`,
		"GET /clients/c1/psvs/position":          `{"current": {"stress_level": 4, "energy_state": "negative", "distance": 1}, "trajectory": []}`,
		"POST /sessions/s1/supervision-feedback": `{"ok": true}`,
	})

	c := NewClient(srv.URL+"/", "secret", time.Second)
	ctx := context.Background()

	sessions, err := c.ListSessions(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "c1", sessions[0].ClientID, "client id is filled from the request")

	msgs, err := c.ListMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Snapshot)
	assert.Equal(t, 3.0, msgs[0].Snapshot.StressLevel)

	subs, err := c.ListSubSessions(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, subs)

	pos, err := c.GetPosition(ctx, "c1", 30)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, timeline.EnergyNegative, pos.Current.EnergyState)

	mid := "m1"
	err = c.SubmitFeedback(ctx, timeline.Feedback{
		SessionID:      "s1",
		MessageID:      &mid,
		PractitionerID: "pr-1",
		Rating:         4,
		Comment:        "good pacing",
		CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, *calls, 5)
	for _, call := range *calls {
		assert.Equal(t, "Bearer secret", call.auth)
	}
	assert.Equal(t, "trajectory=30", (*calls)[3].query)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal((*calls)[4].body, &sent))
	assert.Equal(t, "m1", sent["message_id"])
	assert.Equal(t, "pr-1", sent["practitioner_id"])
	assert.Equal(t, "2024-05-01T12:00:00Z", sent["created_at"])
}

func TestClient_StatusError(t *testing.T) {
	srv, _ := newUpstream(t, map[string]string{})
	c := NewClient(srv.URL, "", time.Second)

	_, err := c.ListMessages(context.Background(), "missing")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.Equal(t, "/sessions/missing/messages", statusErr.Path)
}

func TestClient_HonoursContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "", 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListSessions(ctx, "c1")
	assert.ErrorIs(t, err, context.Canceled)
}
