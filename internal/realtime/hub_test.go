package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/vendorrequests"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

func startHub(t *testing.T, principal *shared.Principal) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(nil, nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal != nil {
			r = r.WithContext(shared.ContextWithPrincipal(r.Context(), principal))
		}
		hub.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHubBroadcastsToReviewer(t *testing.T) {
	hub, url := startHub(t, &shared.Principal{UserID: 2, Role: workflow.RoleComplianceApprover})
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	evt := vendorrequests.StatusChanged{RequestID: 9, RequestNumber: "VCR-00000009", Action: workflow.ActionSubmit,
		From: workflow.StatusDraft, To: workflow.StatusPendingComplianceReview, RequestedBy: 1}
	require.NoError(t, hub.Publish(context.Background(), evt))
	env := readEnvelope(t, conn)
	require.Equal(t, EventStatusChanged, env.Type)
	require.Equal(t, int64(9), env.Data.RequestID)
	require.Equal(t, workflow.StatusPendingComplianceReview, env.Data.To)
}

func TestHubFiltersOtherRequestersEvents(t *testing.T) {
	hub, url := startHub(t, &shared.Principal{UserID: 1, Role: workflow.RoleDepartmentRequester})
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	other := vendorrequests.StatusChanged{RequestID: 3, RequestedBy: 7, To: workflow.StatusActive}
	own := vendorrequests.StatusChanged{RequestID: 4, RequestedBy: 1, To: workflow.StatusCancelled}
	require.NoError(t, hub.Publish(context.Background(), other))
	require.NoError(t, hub.Publish(context.Background(), own))

	env := readEnvelope(t, conn)
	require.Equal(t, int64(4), env.Data.RequestID)
}

func TestHubRejectsAnonymous(t *testing.T) {
	_, url := startHub(t, nil)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublishAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, nil)
	finished := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(finished)
	}()
	cancel()
	<-finished

	for i := 0; i < 300; i++ {
		require.NoError(t, hub.Publish(context.Background(), vendorrequests.StatusChanged{RequestID: int64(i)}))
	}
}
