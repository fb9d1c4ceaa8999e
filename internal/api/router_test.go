package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/boardhub/boardhub/internal/app"
	iauth "github.com/boardhub/boardhub/internal/auth"
	"github.com/boardhub/boardhub/internal/database/testutil"
	"github.com/boardhub/boardhub/internal/notifications"
)

type apiTest struct {
	router *gin.Engine
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	tokens, err := iauth.NewTokenService(db, iauth.TokenConfig{
		Secret:     "test-secret",
		Issuer:     "boardhub",
		SessionTTL: time.Hour,
	})
	require.NoError(t, err)

	notifier, err := notifications.NewNotifier(db, notifications.NewHub(), nil)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Prometheus.Enabled = false

	router, err := NewRouter(db, tokens, cfg, notifier)
	require.NoError(t, err)

	return &apiTest{router: router}
}

func (a *apiTest) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, w.Body.String())
	return envelope.Data
}

func (a *apiTest) signup(t *testing.T, name string) (string, string) {
	t.Helper()

	username := name + "-" + uuid.NewString()[:8]
	w := a.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := decodeData(t, w)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	user := data["user"].(map[string]interface{})
	return user["id"].(string), token
}

func TestHealthEndpoint(t *testing.T) {
	a := newAPITest(t)

	w := a.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}

func TestSignupAndSignin(t *testing.T) {
	a := newAPITest(t)
	_, token := a.signup(t, "ada")

	// The issued token works.
	w := a.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Signin with wrong password fails.
	w = a.do(t, http.MethodPost, "/api/auth/signin", "", gin.H{"login": "ada", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignupValidation(t *testing.T) {
	a := newAPITest(t)

	w := a.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": "x",
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "BAD_REQUEST")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	a := newAPITest(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/accounts"},
		{http.MethodPost, "/api/boards"},
		{http.MethodGet, "/api/notifications"},
	} {
		w := a.do(t, route.method, route.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}
}

func TestBoardLifecycleOverHTTP(t *testing.T) {
	a := newAPITest(t)
	_, token := a.signup(t, "owner")

	// The personal account arrives with signup.
	w := a.do(t, http.MethodGet, "/api/accounts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	accounts := decodeData(t, w)["accounts"].([]interface{})
	require.Len(t, accounts, 1)
	accountID := accounts[0].(map[string]interface{})["id"].(string)

	// Create a board.
	w = a.do(t, http.MethodPost, "/api/boards", token, gin.H{
		"account_id": accountID,
		"name":       "Roadmap",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	boardID := created.Data.ID

	// Private board: anonymous read is denied.
	w = a.do(t, http.MethodGet, "/api/boards/"+boardID, "", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	// Share it; anonymous read now succeeds.
	shared := true
	w = a.do(t, http.MethodPut, "/api/boards/"+boardID, token, gin.H{"is_shared": shared})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/boards/"+boardID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Anonymous write is still rejected.
	w = a.do(t, http.MethodPut, "/api/boards/"+boardID, "", gin.H{"name": "Hijack"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Delete.
	w = a.do(t, http.MethodDelete, "/api/boards/"+boardID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/boards/"+boardID, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinRequestFlowOverHTTP(t *testing.T) {
	a := newAPITest(t)
	_, ownerToken := a.signup(t, "owner")
	_, requesterToken := a.signup(t, "requester")

	w := a.do(t, http.MethodGet, "/api/accounts", ownerToken, nil)
	accounts := decodeData(t, w)["accounts"].([]interface{})
	accountID := accounts[0].(map[string]interface{})["id"].(string)

	w = a.do(t, http.MethodPost, "/api/boards", ownerToken, gin.H{"account_id": accountID, "name": "Open Board"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	boardID := created.Data.ID

	// File a join request.
	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/boards/%s/requests", boardID), requesterToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var request struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &request))

	// A duplicate is rejected.
	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/boards/%s/requests", boardID), requesterToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "DUPLICATE_REQUEST")

	// The requester cannot moderate their own request.
	w = a.do(t, http.MethodPost, "/api/requests/"+request.Data.ID+"/accept", requesterToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	// The owner accepts; the requester can now read the board.
	w = a.do(t, http.MethodPost, "/api/requests/"+request.Data.ID+"/accept", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, http.MethodGet, "/api/boards/"+boardID, requesterToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Resolution is terminal.
	w = a.do(t, http.MethodPost, "/api/requests/"+request.Data.ID+"/reject", ownerToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "INVALID_STATE_TRANSITION")

	// The requester got an in-app notification.
	w = a.do(t, http.MethodGet, "/api/notifications", requesterToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "join_request_accepted")
}

func TestSignupDomainCheckOverHTTP(t *testing.T) {
	a := newAPITest(t)
	_, ownerToken := a.signup(t, "owner")

	w := a.do(t, http.MethodPost, "/api/accounts", ownerToken, gin.H{"name": "Acme"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Closed by default.
	w = a.do(t, http.MethodPost, "/api/signup/"+created.Data.Slug+"/check", "", gin.H{"email": "new@corp.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "ACCOUNT_DOMAIN_NOT_ALLOWED")

	// Open signup and allow-list the domain.
	w = a.do(t, http.MethodPut, "/api/accounts/"+created.Data.ID+"/signup", ownerToken, gin.H{"allow_signup": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = a.do(t, http.MethodPost, "/api/accounts/"+created.Data.ID+"/domains", ownerToken, gin.H{"domain_name": "corp.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/signup/"+created.Data.Slug+"/check", "", gin.H{"email": "new@corp.com"})
	require.Equal(t, http.StatusOK, w.Code)

	// Unknown slug fails with the identical error.
	w = a.do(t, http.MethodPost, "/api/signup/nope/check", "", gin.H{"email": "new@corp.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "ACCOUNT_DOMAIN_NOT_ALLOWED")
}

func TestSignupInterestEndpoint(t *testing.T) {
	a := newAPITest(t)

	w := a.do(t, http.MethodPost, "/api/signup-requests", "", gin.H{"email": "waiting@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Idempotent.
	w = a.do(t, http.MethodPost, "/api/signup-requests", "", gin.H{"email": "waiting@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	a := newAPITest(t)

	w := a.do(t, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}
