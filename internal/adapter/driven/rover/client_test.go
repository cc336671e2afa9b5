package rover_test

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

	"github.com/helios-robotics/roverops/internal/adapter/driven/rover"
	"github.com/helios-robotics/roverops/internal/domain/model"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *rover.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return rover.NewClientWithHTTPClient(server.Client(), server.URL)
}

func TestLogin_Success(t *testing.T) {
	var gotContentType, gotUsername, gotPassword string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/token", r.URL.Path)
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotUsername = r.PostFormValue("username")
		gotPassword = r.PostFormValue("password")

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "A1",
			"refresh_token": "R1",
			"expires_in":    3600,
		})
	}))

	before := time.Now()
	grant, err := client.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "alice", gotUsername)
	assert.Equal(t, "secret1", gotPassword)
	assert.Equal(t, "A1", grant.AccessToken)
	assert.Equal(t, "R1", grant.RefreshToken)
	assert.WithinDuration(t, before.Add(time.Hour), grant.ExpiresAt, 5*time.Second)
}

func TestLogin_RejectedWithDetail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "account locked"})
	}))

	_, err := client.Login(context.Background(), "alice", "wrong")
	var authErr *model.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "account locked", authErr.Message)
}

func TestLogin_RejectedWithUnparseableBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("<html>nope</html>"))
	}))

	_, err := client.Login(context.Background(), "alice", "wrong")
	var authErr *model.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, model.DefaultAuthMessage, authErr.Message)
}

func TestRegister_Success(t *testing.T) {
	var got map[string]string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/register", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))

	err := client.Register(context.Background(), "alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got["username"])
	assert.Equal(t, "alice@example.com", got["email"])
	assert.Equal(t, "secret1", got["password"])
}

func TestRegister_Rejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"detail": "username taken"})
	}))

	err := client.Register(context.Background(), "alice", "a@b.c", "pw")
	var regErr *model.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "username taken", regErr.Message)
}

func TestRefresh_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "R1", body["refresh_token"])

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "A2",
			"refresh_token": "R2",
			"expires_in":    1800,
		})
	}))

	grant, err := client.Refresh(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "A2", grant.AccessToken)
	assert.Equal(t, "R2", grant.RefreshToken)
}

func TestRefresh_RejectedIsPlainError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Refresh(context.Background(), "stale")
	require.Error(t, err)

	// Refresh failures are never surfaced as credential errors; they only
	// ever trigger silent logout in the session manager.
	var authErr *model.AuthenticationError
	assert.False(t, errors.As(err, &authErr))
}

func TestSendTeleop_BearerAttached(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/teleop", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))

	require.NoError(t, client.SendTeleop(context.Background(), "A1", model.DirectionLeft))
	assert.Equal(t, "Bearer A1", gotAuth)
	assert.Equal(t, "left", gotBody["direction"])
}

func TestSendTeleop_NoTokenSendsUnauthenticated(t *testing.T) {
	var gotAuth string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))

	require.NoError(t, client.SendTeleop(context.Background(), "", model.DirectionStop))
	assert.Empty(t, gotAuth)
}

func TestFetchMapSnapshot(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/map_snapshot", r.URL.Path)
		require.Equal(t, "Bearer A1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"image":  "data:image/png;base64,AAAA",
		})
	}))

	snap, err := client.FetchMapSnapshot(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "ok", snap.Status)
	assert.Equal(t, "data:image/png;base64,AAAA", snap.Image)
}

func TestControlSlam(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/slam", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "start", body["action"])
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "state": "running"})
	}))

	state, err := client.ControlSlam(context.Background(), "A1", model.SlamStart)
	require.NoError(t, err)
	assert.Equal(t, "running", state)
}

func TestControlSlam_BackendError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "detail": "Invalid action"})
	}))

	_, err := client.ControlSlam(context.Background(), "A1", model.SlamStatus)
	require.ErrorContains(t, err, "Invalid action")
}

func TestHealth(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))

	assert.NoError(t, client.Health(context.Background()))
}
