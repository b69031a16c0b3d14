// Package httpapi exposes the local credential operations over JSON:
// signup, signin, signout, pending-profile lookup, confirmation, and
// the small authenticated profile surface.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	"github.com/mritob/authgate"
	"github.com/mritob/authgate/middleware/gateware"
)

// CookieSession carries the full session token.
const CookieSession = "JWT_TOKEN"

// CookiePending carries the sentinel token issued mid federated signup.
const CookiePending = "USER"

// AvatarStorage persists an uploaded avatar and returns its public link.
type AvatarStorage interface {
	Save(ctx context.Context, filename string, content io.Reader) (string, error)
}

// Config configures the controller.
type Config struct {
	// CookieDuration is how long the session cookie lives (default 24h).
	CookieDuration time.Duration

	// CookieSecure sets the Secure flag on cookies
	CookieSecure bool

	// Debug dumps payloads and rich error metadata to the logger.
	Debug bool
}

// Controller handles the credential routes.
type Controller struct {
	Auther   *authgate.Auther
	Linker   *authgate.IdentityLinker
	Accounts authgate.Accounts
	Tokens   authgate.TokenService
	Avatars  AvatarStorage
	Logger   authgate.Logger
	config   Config
}

// NewController creates a controller with defaults applied.
func NewController(auther *authgate.Auther, linker *authgate.IdentityLinker, accounts authgate.Accounts, cfg Config) *Controller {
	if cfg.CookieDuration == 0 {
		cfg.CookieDuration = 24 * time.Hour
	}

	return &Controller{
		Auther:   auther,
		Linker:   linker,
		Accounts: accounts,
		Logger:   authgate.DefaultLogger(),
		config:   cfg,
	}
}

// WithAvatarStorage wires avatar uploads. Without it the avatar route
// answers 404.
func (h *Controller) WithAvatarStorage(storage AvatarStorage) *Controller {
	h.Avatars = storage
	return h
}

// WithTokenService wires the validator the avatar route uses to accept
// either cookie without going through the gate.
func (h *Controller) WithTokenService(tokens authgate.TokenService) *Controller {
	h.Tokens = tokens
	return h
}

func (h *Controller) WithLogger(logger authgate.Logger) *Controller {
	if logger != nil {
		h.Logger = logger
	}
	return h
}

// SignupPayload is the local registration body.
type SignupPayload struct {
	Email      string `form:"email" json:"email"`
	Username   string `form:"username" json:"username"`
	Password   string `form:"password" json:"password"`
	AvatarLink string `form:"avatar_link" json:"avatar_link"`
}

// Validate will run validation rules
func (r SignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Username, validation.Required, validation.Length(2, 32)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.AvatarLink, is.URL),
	)
}

// Signup registers a fresh local account and logs it in.
func (h *Controller) Signup(c *fiber.Ctx) error {
	payload := new(SignupPayload)

	if err := c.BodyParser(payload); err != nil {
		return h.respondError(c, errors.Wrap(err, errors.CategoryBadInput, "failed to parse body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return h.respondValidation(c, err)
	}

	if h.config.Debug {
		h.Logger.Debug("signup payload", "payload", print.MaybePrettyJSON(payload))
	}

	token, account, err := h.Auther.Signup(c.UserContext(), authgate.SignupInput{
		Email:      payload.Email,
		Username:   payload.Username,
		Password:   payload.Password,
		AvatarLink: payload.AvatarLink,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	h.setCookieToken(c, CookieSession, token, h.config.CookieDuration)

	return c.Status(fiber.StatusCreated).JSON(accountResponse(account))
}

// SigninPayload is the local login body.
type SigninPayload struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SigninPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// Signin checks local credentials and sets the session cookie.
func (h *Controller) Signin(c *fiber.Ctx) error {
	payload := new(SigninPayload)

	if err := c.BodyParser(payload); err != nil {
		return h.respondError(c, errors.Wrap(err, errors.CategoryBadInput, "failed to parse body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return h.respondValidation(c, err)
	}

	token, err := h.Auther.Signin(c.UserContext(), payload.Username, payload.Password)
	if err != nil {
		h.Logger.Info("signin rejected", "username", payload.Username)
		return h.respondError(c, err)
	}

	h.setCookieToken(c, CookieSession, token, h.config.CookieDuration)

	return c.JSON(fiber.Map{"status": "ok"})
}

// Signout clears both auth cookies. It works without a valid session
// so a half-finished signup can always bail out.
func (h *Controller) Signout(c *fiber.Ctx) error {
	h.cookieDel(c, CookieSession)
	h.cookieDel(c, CookiePending)
	return c.JSON(fiber.Map{"status": "ok"})
}

// PendingProfile returns the provisioned account behind the pending
// cookie so the confirmation form can prefill.
func (h *Controller) PendingProfile(c *fiber.Ctx) error {
	raw := c.Cookies(CookiePending)
	if raw == "" {
		return h.respondError(c, authgate.ErrUnauthenticated)
	}

	account, err := h.Linker.PendingProfile(c.UserContext(), raw)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(accountResponse(account))
}

// ConfirmPayload carries the chosen local credentials.
type ConfirmPayload struct {
	Username             string `form:"username" json:"username"`
	Password             string `form:"password" json:"password"`
	PasswordConfirmation string `form:"password_confirmation" json:"password_confirmation"`
}

// Validate will run validation rules
func (r ConfirmPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(2, 32)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.PasswordConfirmation, validation.Required),
	)
}

// Confirm promotes the provisional account behind the pending cookie
// into a confirmed one and swaps the sentinel cookie for a session.
func (h *Controller) Confirm(c *fiber.Ctx) error {
	raw := c.Cookies(CookiePending)
	if raw == "" {
		return h.respondError(c, authgate.ErrUnauthenticated)
	}

	payload := new(ConfirmPayload)

	if err := c.BodyParser(payload); err != nil {
		return h.respondError(c, errors.Wrap(err, errors.CategoryBadInput, "failed to parse body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return h.respondValidation(c, err)
	}

	token, account, err := h.Linker.Confirm(
		c.UserContext(),
		raw,
		payload.Username,
		payload.Password,
		payload.PasswordConfirmation,
	)
	if err != nil {
		return h.respondError(c, err)
	}

	h.cookieDel(c, CookiePending)
	h.setCookieToken(c, CookieSession, token, h.config.CookieDuration)

	return c.JSON(accountResponse(account))
}

// Me returns the account behind the current session.
func (h *Controller) Me(c *fiber.Ctx) error {
	identity, ok := gateware.IdentityFromRequest(c)
	if !ok {
		return h.respondError(c, authgate.ErrUnauthenticated)
	}

	account, err := h.Accounts.FindByEmail(c.UserContext(), identity.Email())
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(accountResponse(account))
}

// Avatar stores an uploaded avatar image. The route accepts the
// pending cookie as well as the session cookie so users can attach an
// avatar while finishing federated signup, before they hold a full
// session. Either way the upload is keyed by the verified email claim.
func (h *Controller) Avatar(c *fiber.Ctx) error {
	if h.Avatars == nil || h.Tokens == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "avatar uploads not enabled",
		})
	}

	token := c.Cookies(CookiePending)
	if token == "" {
		token = c.Cookies(CookieSession)
	}
	if token == "" {
		return h.respondError(c, authgate.ErrUnauthenticated)
	}

	claims, err := h.Tokens.Validate(token)
	if err != nil || claims.Email == "" {
		return h.respondError(c, authgate.ErrUnauthenticated)
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return h.respondError(c, errors.Wrap(err, errors.CategoryBadInput, "missing avatar file").
			WithCode(errors.CodeBadRequest))
	}

	content, err := file.Open()
	if err != nil {
		return h.respondError(c, errors.Wrap(err, errors.CategoryBadInput, "failed to open avatar file").
			WithCode(errors.CodeBadRequest))
	}
	defer content.Close()

	filename := fmt.Sprintf("%s_%s", uuid.NewString(), file.Filename)
	link, err := h.Avatars.Save(c.UserContext(), filename, content)
	if err != nil {
		return h.respondError(c, err)
	}

	account, err := h.Accounts.UpdateAvatar(c.UserContext(), claims.Email, link)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(accountResponse(account))
}

func accountResponse(account *authgate.Account) fiber.Map {
	return fiber.Map{
		"id":          account.ID,
		"email":       account.Email,
		"username":    account.Username,
		"avatar_link": account.AvatarLink,
		"trust_state": account.TrustState,
	}
}

func (h *Controller) setCookieToken(c *fiber.Ctx, name, val string, duration time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    val,
		Path:     "/",
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: "Lax",
	})
}

func (h *Controller) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: "Lax",
	})
}

func (h *Controller) respondValidation(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":      "validation failed",
		"validation": err.Error(),
	})
}

func (h *Controller) respondError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "an unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	if h.config.Debug {
		h.Logger.Debug("request error", "metadata", print.MaybePrettyJSON(richErr.Metadata))
	}

	status := richErr.Code
	if status < 400 || status > 599 {
		status = fiber.StatusInternalServerError
	}

	h.Logger.Warn("request failed",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"category", richErr.Category,
		"path", c.Path(),
	)

	body := fiber.Map{"error": richErr.Message}
	if richErr.TextCode != "" {
		body["text_code"] = richErr.TextCode
	}

	return c.Status(status).JSON(body)
}
