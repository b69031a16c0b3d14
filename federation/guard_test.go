package federation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/mritob/authgate"
	"github.com/mritob/authgate/federation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider skips the real OAuth dance and vouches for a canned profile.
type fakeProvider struct {
	profile *federation.Profile
}

func (p *fakeProvider) Name() string { return "intra" }

func (p *fakeProvider) AuthCodeURL(state string, opts ...federation.AuthCodeOption) string {
	return "https://provider.example.com/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*federation.Token, error) {
	return &federation.Token{AccessToken: "access-token"}, nil
}

func (p *fakeProvider) UserInfo(ctx context.Context, token *federation.Token) (*federation.Profile, error) {
	return p.profile, nil
}

// memAccounts is a minimal in-memory account store keyed by email.
type memAccounts struct {
	byEmail map[string]*authgate.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byEmail: map[string]*authgate.Account{}}
}

func (m *memAccounts) FindByEmail(ctx context.Context, email string) (*authgate.Account, error) {
	if a, ok := m.byEmail[email]; ok {
		return a, nil
	}
	return nil, errors.New("record not found", errors.CategoryNotFound).WithCode(errors.CodeNotFound)
}

func (m *memAccounts) FindByUsername(ctx context.Context, username string) (*authgate.Account, error) {
	for _, a := range m.byEmail {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, errors.New("record not found", errors.CategoryNotFound).WithCode(errors.CodeNotFound)
}

func (m *memAccounts) Create(ctx context.Context, record *authgate.Account) (*authgate.Account, error) {
	if _, ok := m.byEmail[record.Email]; ok {
		return nil, authgate.ErrDuplicateAccount
	}
	record.ID = uuid.New()
	record.EnsureTrustState()
	m.byEmail[record.Email] = record
	return record, nil
}

func (m *memAccounts) PromoteToConfirmed(ctx context.Context, email, username, passwordHash string) (*authgate.Account, error) {
	a, ok := m.byEmail[email]
	if !ok {
		return nil, authgate.ErrAccountNotFound
	}
	if a.TrustState != authgate.TrustProvisional {
		return nil, authgate.ErrAlreadyConfirmed
	}
	a.Username = username
	a.PasswordHash = passwordHash
	a.TrustState = authgate.TrustConfirmed
	return a, nil
}

func (m *memAccounts) UpdateAvatar(ctx context.Context, email, link string) (*authgate.Account, error) {
	a, ok := m.byEmail[email]
	if !ok {
		return nil, authgate.ErrAccountNotFound
	}
	a.AvatarLink = link
	return a, nil
}

func newGuardApp(t *testing.T, provider federation.Provider, accounts authgate.Accounts) (*fiber.App, *federation.EncryptedStateManager) {
	t.Helper()

	tokens := authgate.NewTokenService(
		[]byte("test-signing-key"),
		24,
		"test-issuer",
		jwt.ClaimStrings{"test:audience"},
		nil,
	)

	linker := authgate.NewIdentityLinker(accounts, tokens)
	states := newStateManager(10 * time.Minute)

	guard := federation.NewEntryGuard(provider, states, linker, federation.GuardConfig{})

	app := fiber.New()
	app.Get("/auth/federated-start", guard.Start)
	app.Get("/auth/federated-callback", guard.Callback)

	return app, states
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestGuardStart(t *testing.T) {
	provider := &fakeProvider{}
	app, states := newGuardApp(t, provider, newMemAccounts())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/auth/federated-start?redirect_url=/dashboard", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "provider.example.com", location.Host)

	state, err := states.Decode(location.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "intra", state.Provider)
	assert.Equal(t, "/dashboard", state.RedirectURL)
}

func TestGuardCallback_FirstContact(t *testing.T) {
	provider := &fakeProvider{profile: &federation.Profile{
		Provider:  "intra",
		Email:     "bob@student.42.fr",
		Username:  "bob",
		AvatarURL: "https://cdn.intra.42.fr/users/bob.jpg",
	}}

	accounts := newMemAccounts()
	app, states := newGuardApp(t, provider, accounts)

	state, err := states.Encode(&federation.State{Provider: "intra"})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet,
		"/auth/federated-callback?code=the-code&state="+url.QueryEscape(state), nil))
	require.NoError(t, err)

	// Not logged in yet: pending cookie plus redirect to the confirm page.
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/finish-signup", resp.Header.Get("Location"))

	pending := cookieByName(resp, federation.CookiePending)
	require.NotNil(t, pending)
	assert.NotEmpty(t, pending.Value)
	assert.Nil(t, cookieByName(resp, federation.CookieSession))

	// The pending cookie is bounded by the sentinel token lifetime,
	// not the session default.
	assert.WithinDuration(t,
		time.Now().Add(authgate.DefaultPendingTokenTTL), pending.Expires, time.Minute)

	account, err := accounts.FindByEmail(context.Background(), "bob@student.42.fr")
	require.NoError(t, err)
	assert.Equal(t, authgate.TrustProvisional, account.TrustState)
}

func TestGuardCallback_ConfirmedUser(t *testing.T) {
	provider := &fakeProvider{profile: &federation.Profile{
		Provider: "intra",
		Email:    "bob@student.42.fr",
		Username: "bob",
	}}

	accounts := newMemAccounts()
	_, err := accounts.Create(context.Background(), &authgate.Account{
		Email:        "bob@student.42.fr",
		Username:     "bob",
		PasswordHash: "hash",
		TrustState:   authgate.TrustConfirmed,
	})
	require.NoError(t, err)

	app, states := newGuardApp(t, provider, accounts)

	state, err := states.Encode(&federation.State{Provider: "intra", RedirectURL: "/dashboard"})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet,
		"/auth/federated-callback?code=the-code&state="+url.QueryEscape(state), nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	session := cookieByName(resp, federation.CookieSession)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.Value)
	assert.Nil(t, cookieByName(resp, federation.CookiePending))
}

func TestGuardCallback_ProviderDenied(t *testing.T) {
	app, _ := newGuardApp(t, &fakeProvider{}, newMemAccounts())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet,
		"/auth/federated-callback?error=access_denied", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "access_denied", location.Query().Get("oauth_error"))
}

func TestGuardCallback_BadState(t *testing.T) {
	app, _ := newGuardApp(t, &fakeProvider{}, newMemAccounts())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet,
		"/auth/federated-callback?code=the-code&state=garbage", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", location.Path)
}
