package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/adapters/cache"
	"github.com/warden-auth/warden/adapters/hasher"
	"github.com/warden-auth/warden/adapters/store"
	"github.com/warden-auth/warden/core"
	"github.com/warden-auth/warden/ports"
	"github.com/warden-auth/warden/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTokenizer struct{}

func (fakeTokenizer) Issue(uuid, sessionID string) (*core.SecurityToken, error) {
	return &core.SecurityToken{
		AuthorizationToken: "authorization-" + uuid,
		RefreshToken:       "refresh-" + uuid,
	}, nil
}

func (fakeTokenizer) Verify(token string, kind core.TokenKind) (string, error) {
	prefix := string(kind) + "-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return "", core.InvalidOrNullToken()
	}
	return token[len(prefix):], nil
}

func (t fakeTokenizer) Rotate(token core.SecurityToken) (*core.SecurityToken, error) {
	uuid, err := t.Verify(token.RefreshToken, core.RefreshToken)
	if err != nil {
		return nil, err
	}
	return t.Issue(uuid, "rotated")
}

type fakeVerifier struct{}

func (fakeVerifier) BeginRegistration(account *core.Account) (*ports.RegistrationChallenge, error) {
	return &ports.RegistrationChallenge{
		Options: []byte(`{"publicKey":{"challenge":"reg"}}`),
		Session: []byte("reg-session"),
	}, nil
}

func (fakeVerifier) FinishRegistration(account *core.Account, session, response []byte) (*core.FidoCredential, error) {
	return &core.FidoCredential{CredentialID: "cred-1", PublicKeyCOSE: []byte{1}, KeyType: "public-key"}, nil
}

func (fakeVerifier) BeginAssertion(account *core.Account) (*ports.AssertionChallenge, error) {
	return &ports.AssertionChallenge{
		Options: []byte(`{"publicKey":{"challenge":"login"}}`),
		Session: []byte("login-session"),
	}, nil
}

func (fakeVerifier) FinishAssertion(account *core.Account, session, response []byte) (*ports.AssertionResult, error) {
	return &ports.AssertionResult{Success: true, CredentialID: "cred-1", SignCount: 1}, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, topic string, payload any) error { return nil }
func (nopPublisher) Close() error                                                 { return nil }

type testServer struct {
	router *gin.Engine
	store  ports.AccountStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.Default()
	accounts := store.NewMemoryStore()
	challenges := cache.NewMemoryCache()

	passkeys := service.NewPasskeyService(accounts, challenges, fakeVerifier{}, fakeTokenizer{}, nopPublisher{}, logger)
	auth := service.NewAuthService(accounts, fakeTokenizer{}, hasher.NewBcryptHasher(4), passkeys, nopPublisher{}, logger)

	cookies := NewCookieWriter("", false, time.Hour, 31556952*time.Second)
	handlers := NewHandlers(auth, passkeys, cookies, logger)
	return &testServer{router: SetupRouter(handlers, logger), store: accounts}
}

func (s *testServer) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signupAlice(t *testing.T) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/accounts/new", gin.H{
		"username":               "alice",
		"email":                  "alice@example.com",
		"password":               "s3cret",
		"authenticationStrategy": "PASSWORD",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func cookieValue(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCreateAccountPassword(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/accounts/new", gin.H{
		"username":               "alice",
		"email":                  "alice@example.com",
		"password":               "s3cret",
		"authenticationStrategy": "PASSWORD",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	at := cookieValue(rec, CookieAuthorization)
	require.NotNil(t, at)
	assert.True(t, at.HttpOnly)
	assert.Equal(t, "/", at.Path)
	assert.Equal(t, http.SameSiteLaxMode, at.SameSite)
	assert.NotNil(t, cookieValue(rec, CookieRefresh))

	var body struct {
		Token core.SecurityToken `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Token.AuthorizationToken)
}

func TestCreateAccountDuplicate(t *testing.T) {
	s := newTestServer(t)
	s.signupAlice(t)

	rec := s.do(t, http.MethodPost, "/accounts/new", gin.H{
		"username":               "alice",
		"email":                  "alice@example.com",
		"password":               "s3cret",
		"authenticationStrategy": "PASSWORD",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACCOUNT_EXISTS")
}

func TestCreateAccountPasskey(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/accounts/new", gin.H{
		"username":               "bob",
		"email":                  "bob@example.com",
		"authenticationStrategy": "PASSKEY",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"publicKey":{"challenge":"reg"}}`, rec.Body.String())
	assert.Nil(t, cookieValue(rec, CookieAuthorization))
}

func TestCreateAccountWithoutPassword(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/accounts/new", gin.H{
		"username":               "carol",
		"email":                  "carol@example.com",
		"authenticationStrategy": "PASSWORD",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "NULL_PASSWORD")
}

func TestAuthenticationStrategy(t *testing.T) {
	s := newTestServer(t)
	s.signupAlice(t)

	rec := s.do(t, http.MethodPost, "/accounts/authenticationStrategy", gin.H{"identifier": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticationStrategy":"PASSWORD"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/accounts/authenticationStrategy", gin.H{"identifier": "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACCOUNT_NOT_FOUND")
}

func TestAuthenticate(t *testing.T) {
	s := newTestServer(t)
	s.signupAlice(t)

	rec := s.do(t, http.MethodPost, "/accounts/authenticate", gin.H{"identifier": "alice", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, cookieValue(rec, CookieAuthorization))
	assert.NotNil(t, cookieValue(rec, CookieRefresh))

	rec = s.do(t, http.MethodPost, "/accounts/authenticate", gin.H{"identifier": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_PASSWORD")

	rec = s.do(t, http.MethodPost, "/accounts/authenticate", gin.H{"identifier": "alice", "password": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "NULL_PASSWORD")
}

func TestAuthenticatePasskeyReturnsAssertionOptions(t *testing.T) {
	s := newTestServer(t)
	s.signupAlice(t)

	account, err := s.store.FindAccount(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, s.store.AppendCredential(context.Background(), account.UUID, core.FidoCredential{CredentialID: "cred-1"}))

	rec := s.do(t, http.MethodPost, "/accounts/authenticate", gin.H{"identifier": "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"publicKey":{"challenge":"login"}}`, rec.Body.String())
}

func TestRefreshFromCookie(t *testing.T) {
	s := newTestServer(t)
	s.signupAlice(t)

	account, err := s.store.FindAccount(context.Background(), "alice")
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/accounts/refresh", nil, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: CookieRefresh, Value: "refresh-" + account.UUID})
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, cookieValue(rec, CookieAuthorization))
}

func TestRefreshInvalidToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/accounts/refresh", gin.H{"refreshToken": "garbage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_OR_NULL_TOKEN")
}

func TestDetails(t *testing.T) {
	s := newTestServer(t)
	s.signupAlice(t)

	account, err := s.store.FindAccount(context.Background(), "alice")
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/accounts/details", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer authorization-"+account.UUID)
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "alice@example.com")
	assert.NotContains(t, rec.Body.String(), "digest")

	rec = s.do(t, http.MethodGet, "/accounts/details", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_OR_NULL_TOKEN")
}

func TestPasskeyCeremonyEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.signupAlice(t)

	rec := s.do(t, http.MethodPost, "/accounts/passkeys/register", gin.H{"identifier": "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"publicKey":{"challenge":"reg"}}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/accounts/passkeys/validateRegistrationChallenge", gin.H{
		"identifier": "alice",
		"credentials": gin.H{"id": "cred-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/accounts/authenticate", gin.H{"identifier": "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/accounts/passkeys/validatePasskeyChallenge", gin.H{
		"identifier": "alice",
		"credentials": gin.H{"id": "cred-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, cookieValue(rec, CookieAuthorization))
}

func TestValidateWithoutStart(t *testing.T) {
	s := newTestServer(t)
	s.signupAlice(t)

	rec := s.do(t, http.MethodPost, "/accounts/passkeys/validatePasskeyChallenge", gin.H{
		"identifier": "alice",
		"credentials": gin.H{"id": "cred-1"},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQUEST_NOT_COMPLETED")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
