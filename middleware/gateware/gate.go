// Package gateware is the single authorization decision point every
// inbound request passes through. Route visibility is declared in an
// explicit table instead of handler metadata: routes are protected by
// default and must opt in to being public.
package gateware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/mritob/authgate"
)

// Visibility says whether a route requires a verified session.
type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
)

// Table declares per-route visibility, keyed "METHOD /path". Routes
// not listed are treated as protected.
type Table map[string]Visibility

// RouteKey builds the lookup key for a method and path.
func RouteKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Visibility resolves the declared visibility for a request, defaulting
// to Protected for anything the table does not name.
func (t Table) Visibility(method, path string) Visibility {
	if v, ok := t[RouteKey(method, path)]; ok {
		return v
	}
	return Protected
}

// TokenValidator verifies a raw bearer token into claims.
type TokenValidator interface {
	Validate(token string) (*authgate.Claims, error)
}

// IdentityResolver maps verified claims to the live account identity.
type IdentityResolver func(ctx context.Context, claims *authgate.Claims) (authgate.Identity, error)

// Config holds gate options
type Config struct {
	// Routes is the visibility declaration table. Required.
	Routes Table

	// Validator verifies bearer tokens. Required for protected routes.
	Validator TokenValidator

	// Resolver turns claims into a live identity. A nil identity or an
	// error rejects the request: a token for a deleted account is not
	// proof of anything.
	Resolver IdentityResolver

	// CookieName is where the session token travels (default JWT_TOKEN).
	CookieName string

	// AuthScheme strips a scheme prefix off the Authorization header
	// fallback (default "Bearer").
	AuthScheme string

	// ContextKey is the fiber locals key for the resolved identity
	// (default "identity").
	ContextKey string

	// ErrorHandler renders the rejection (default: JSON 401).
	ErrorHandler func(c *fiber.Ctx, err error) error

	Logger authgate.Logger
}

// CookieSession is the default cookie carrying a full session token.
const CookieSession = "JWT_TOKEN"

// DefaultContextKey is where the gate stores the resolved identity.
const DefaultContextKey = "identity"

func configDefaults(cfg Config) Config {
	if cfg.Validator == nil {
		panic("GATE: middleware configuration: Validator is required.")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = CookieSession
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return cfg
}

// New builds the gate middleware. Public routes pass through with no
// identity attached. Protected routes must present a verifiable,
// unexpired session token whose subject is a real account; a pending
// sentinel token is never sufficient, however valid it is.
func New(config ...Config) fiber.Handler {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg = configDefaults(cfg)

	return func(c *fiber.Ctx) error {
		if cfg.Routes.Visibility(c.Method(), c.Path()) == Public {
			return c.Next()
		}

		raw := extractToken(c, cfg)
		if raw == "" {
			return cfg.ErrorHandler(c, authgate.ErrUnauthenticated)
		}

		claims, err := cfg.Validator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, authgate.ErrUnauthenticated)
		}

		if claims.Pending() {
			cfg.Logger.Warn("gate rejected pending token on protected route", "path", c.Path())
			return cfg.ErrorHandler(c, authgate.ErrUnauthenticated)
		}

		if cfg.Resolver == nil {
			return cfg.ErrorHandler(c, authgate.ErrUnauthenticated)
		}

		identity, err := cfg.Resolver(c.UserContext(), claims)
		if err != nil || identity == nil {
			return cfg.ErrorHandler(c, authgate.ErrUnauthenticated)
		}

		c.Locals(cfg.ContextKey, identity)

		ctx := authgate.WithIdentity(c.UserContext(), identity)
		ctx = authgate.WithClaims(ctx, claims)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// IdentityFromRequest retrieves the identity the gate attached, using
// the default context key.
func IdentityFromRequest(c *fiber.Ctx) (authgate.Identity, bool) {
	identity, ok := c.Locals(DefaultContextKey).(authgate.Identity)
	return identity, ok
}

func extractToken(c *fiber.Ctx, cfg Config) string {
	if raw := c.Cookies(cfg.CookieName); raw != "" {
		return raw
	}

	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}

	prefix := cfg.AuthScheme + " "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}

	return ""
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	message := "unauthenticated"

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code > 0 {
		status = richErr.Code
		message = richErr.Message
	}

	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
