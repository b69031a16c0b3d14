package federation

import (
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mritob/authgate"
)

// CookieSession carries a full session token.
const CookieSession = "JWT_TOKEN"

// CookiePending carries a sentinel token while local credentials are
// still unconfirmed. It never grants access to protected routes.
const CookiePending = "USER"

// GuardConfig configures the entry guard.
type GuardConfig struct {
	// CookieSession overrides the session cookie name (default JWT_TOKEN).
	CookieSession string

	// CookiePending overrides the pending cookie name (default USER).
	CookiePending string

	// CookieSecure sets the Secure flag on cookies
	CookieSecure bool

	// CookieSameSite sets the SameSite attribute (e.g. "Lax", "Strict", "None")
	CookieSameSite string

	// SuccessRedirect is where confirmed users land after the callback
	// (default "/").
	SuccessRedirect string

	// ConfirmRedirect is where provisional users are sent to finish
	// picking local credentials (default "/finish-signup").
	ConfirmRedirect string

	// ErrorRedirect is the redirect for auth errors
	ErrorRedirect string

	// ErrorHandler handles errors (optional)
	ErrorHandler func(c *fiber.Ctx, err error) error

	Logger authgate.Logger
}

// EntryGuard runs the federated entry path: Start redirects out to the
// provider, Callback finishes the exchange and hands the profile to
// the identity linker.
type EntryGuard struct {
	provider Provider
	states   StateManager
	linker   *authgate.IdentityLinker
	config   GuardConfig
}

// NewEntryGuard creates an entry guard for a single provider.
func NewEntryGuard(provider Provider, states StateManager, linker *authgate.IdentityLinker, cfg GuardConfig) *EntryGuard {
	if cfg.CookieSession == "" {
		cfg.CookieSession = CookieSession
	}
	if cfg.CookiePending == "" {
		cfg.CookiePending = CookiePending
	}
	if cfg.CookieSameSite == "" {
		cfg.CookieSameSite = "Lax"
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.ConfirmRedirect == "" {
		cfg.ConfirmRedirect = "/finish-signup"
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = "/login?error=auth_failed"
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}

	return &EntryGuard{
		provider: provider,
		states:   states,
		linker:   linker,
		config:   cfg,
	}
}

// Start begins the OAuth flow by redirecting to the provider.
func (g *EntryGuard) Start(c *fiber.Ctx) error {
	redirectURL := c.Query("redirect_url")
	if redirectURL == "" {
		redirectURL = g.config.SuccessRedirect
	}

	state, err := g.states.Encode(&State{
		Provider:    g.provider.Name(),
		RedirectURL: redirectURL,
	})
	if err != nil {
		return g.handleError(c, err)
	}

	return c.Redirect(g.provider.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

// Callback finishes the OAuth flow. A confirmed account walks away with
// a session cookie; a first-time or still-provisional account gets a
// pending cookie and is sent to the confirmation page instead.
func (g *EntryGuard) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	rawState := c.Query("state")

	if errCode := c.Query("error"); errCode != "" {
		redirectURL := appendQueryParam(g.config.ErrorRedirect, "oauth_error", errCode)
		if errDesc := c.Query("error_description"); errDesc != "" {
			redirectURL = appendQueryParam(redirectURL, "desc", errDesc)
		}
		return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
	}

	if code == "" || rawState == "" {
		redirectURL := appendQueryParam(g.config.ErrorRedirect, "error", "missing_params")
		return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
	}

	state, err := g.states.Decode(rawState)
	if err != nil {
		return g.handleError(c, err)
	}

	if state.Provider != g.provider.Name() {
		return g.handleError(c, ErrInvalidState)
	}

	token, err := g.provider.Exchange(c.UserContext(), code)
	if err != nil {
		return g.handleError(c, wrapProviderFailure(ErrTokenExchangeFailed, g.provider.Name(), "exchange", err))
	}

	profile, err := g.provider.UserInfo(c.UserContext(), token)
	if err != nil {
		return g.handleError(c, wrapProviderFailure(ErrUserInfoFailed, g.provider.Name(), "user_info", err))
	}

	if profile.Email == "" {
		return g.handleError(c, ErrMissingEmail)
	}

	outcome, err := g.linker.Resolve(c.UserContext(), authgate.Profile{
		Email:      profile.Email,
		Username:   profile.Username,
		AvatarLink: profile.AvatarURL,
	})
	if err != nil {
		return g.handleError(c, err)
	}

	if outcome.Pending {
		g.setCookie(c, g.config.CookiePending, outcome.Token, outcome.ExpiresAt)
		return c.Redirect(g.config.ConfirmRedirect, fiber.StatusTemporaryRedirect)
	}

	g.setCookie(c, g.config.CookieSession, outcome.Token, time.Time{})

	redirectURL := state.RedirectURL
	if redirectURL == "" {
		redirectURL = g.config.SuccessRedirect
	}

	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

// setCookie writes a token cookie. A zero expiry falls back to the
// session default; pending cookies pass the sentinel token expiry so
// the cookie never outlives the token inside it.
func (g *EntryGuard) setCookie(c *fiber.Ctx, name, token string, expires time.Time) {
	if expires.IsZero() {
		expires = time.Now().Add(24 * time.Hour)
	}

	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		Secure:   g.config.CookieSecure,
		HTTPOnly: true,
		SameSite: g.config.CookieSameSite,
	})
}

func (g *EntryGuard) handleError(c *fiber.Ctx, err error) error {
	g.config.Logger.Error("federated entry failed", "error", err)

	if g.config.ErrorHandler != nil {
		return g.config.ErrorHandler(c, err)
	}

	redirectURL := appendQueryParam(g.config.ErrorRedirect, "error", err.Error())
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
