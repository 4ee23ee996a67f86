package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/warden-auth/warden/adapters/cache"
	"github.com/warden-auth/warden/adapters/store"
	"github.com/warden-auth/warden/core"
	"github.com/warden-auth/warden/ports"
)

type stubTokenizer struct {
	issueErr  error
	verifyErr error
	issued    int
}

func (t *stubTokenizer) Issue(uuid, sessionID string) (*core.SecurityToken, error) {
	if t.issueErr != nil {
		return nil, t.issueErr
	}
	t.issued++
	return &core.SecurityToken{
		AuthorizationToken: "authorization-" + uuid,
		RefreshToken:       "refresh-" + uuid,
	}, nil
}

func (t *stubTokenizer) Verify(token string, kind core.TokenKind) (string, error) {
	if t.verifyErr != nil {
		return "", t.verifyErr
	}
	prefix := string(kind) + "-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return "", core.InvalidOrNullToken()
	}
	return token[len(prefix):], nil
}

func (t *stubTokenizer) Rotate(token core.SecurityToken) (*core.SecurityToken, error) {
	uuid, err := t.Verify(token.RefreshToken, core.RefreshToken)
	if err != nil {
		return nil, err
	}
	return t.Issue(uuid, "rotated")
}

type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) { return "digest:" + password, nil }
func (stubHasher) Compare(digest, password string) bool { return digest == "digest:"+password }

type stubVerifier struct {
	beginRegistrationErr error
	finishErr            error
	assertionResult      *ports.AssertionResult
	credential           *core.FidoCredential
}

func (v *stubVerifier) BeginRegistration(account *core.Account) (*ports.RegistrationChallenge, error) {
	if v.beginRegistrationErr != nil {
		return nil, v.beginRegistrationErr
	}
	return &ports.RegistrationChallenge{
		Options: []byte(`{"publicKey":{"challenge":"reg"}}`),
		Session: []byte("reg-session-" + account.UUID),
	}, nil
}

func (v *stubVerifier) FinishRegistration(account *core.Account, session, response []byte) (*core.FidoCredential, error) {
	if v.finishErr != nil {
		return nil, v.finishErr
	}
	if string(session) != "reg-session-"+account.UUID {
		return nil, errors.New("session mismatch")
	}
	if v.credential != nil {
		return v.credential, nil
	}
	return &core.FidoCredential{CredentialID: "cred-1", PublicKeyCOSE: []byte{1}, KeyType: "public-key"}, nil
}

func (v *stubVerifier) BeginAssertion(account *core.Account) (*ports.AssertionChallenge, error) {
	return &ports.AssertionChallenge{
		Options: []byte(`{"publicKey":{"challenge":"login"}}`),
		Session: []byte("login-session-" + account.UUID),
	}, nil
}

func (v *stubVerifier) FinishAssertion(account *core.Account, session, response []byte) (*ports.AssertionResult, error) {
	if v.finishErr != nil {
		return nil, v.finishErr
	}
	if v.assertionResult != nil {
		return v.assertionResult, nil
	}
	return &ports.AssertionResult{Success: true, CredentialID: "cred-1", SignCount: 1}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type failingStore struct {
	ports.AccountStore
	signCountErr error
	appendErr    error
}

func (s *failingStore) AppendCredential(ctx context.Context, uuid string, credential core.FidoCredential) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.AccountStore.AppendCredential(ctx, uuid, credential)
}

func (s *failingStore) UpdateCredentialSignCount(ctx context.Context, uuid, credentialID string, signCount uint32, backupState bool) error {
	if s.signCountErr != nil {
		return s.signCountErr
	}
	return s.AccountStore.UpdateCredentialSignCount(ctx, uuid, credentialID, signCount, backupState)
}

type fixture struct {
	store     ports.AccountStore
	cache     ports.ChallengeCache
	tokenizer *stubTokenizer
	verifier  *stubVerifier
	events    *recordingPublisher
	auth      *AuthService
	passkeys  *PasskeyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     store.NewMemoryStore(),
		cache:     cache.NewMemoryCache(),
		tokenizer: &stubTokenizer{},
		verifier:  &stubVerifier{},
		events:    &recordingPublisher{},
	}
	f.wire(t)
	return f
}

func (f *fixture) wire(t *testing.T) {
	t.Helper()
	logger := slog.Default()
	f.passkeys = NewPasskeyService(f.store, f.cache, f.verifier, f.tokenizer, f.events, logger)
	f.auth = NewAuthService(f.store, f.tokenizer, stubHasher{}, f.passkeys, f.events, logger)
}

func (f *fixture) mustSignUp(t *testing.T, req CreateAccountRequest) *core.Account {
	t.Helper()
	result, err := f.auth.SignUp(context.Background(), req)
	if err != nil {
		t.Fatalf("signup %s: %v", req.Username, err)
	}
	return result.Account
}
