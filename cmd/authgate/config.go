package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mritob/authgate"
	"gopkg.in/yaml.v3"
)

// ServiceConfig is the YAML shape of the service configuration. Env
// variables override file values so deployments can keep secrets out
// of the config file.
type ServiceConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		DSN string `yaml:"dsn"`
	} `yaml:"storage"`

	JWT struct {
		SigningKey      string   `yaml:"signing_key"`
		Issuer          string   `yaml:"issuer"`
		Audience        []string `yaml:"audience"`
		ExpirationHours int      `yaml:"expiration_hours"`
		PendingTTL      string   `yaml:"pending_ttl"`
	} `yaml:"jwt"`

	State struct {
		EncryptionKey string `yaml:"encryption_key"`
		HMACKey       string `yaml:"hmac_key"`
		TTL           string `yaml:"ttl"`
	} `yaml:"state"`

	Provider struct {
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		CallbackURL  string   `yaml:"callback_url"`
		Scopes       []string `yaml:"scopes"`
	} `yaml:"provider"`

	Cookies struct {
		Secure bool `yaml:"secure"`
	} `yaml:"cookies"`

	Redirects struct {
		Success string `yaml:"success"`
		Confirm string `yaml:"confirm"`
		Error   string `yaml:"error"`
	} `yaml:"redirects"`

	Avatars struct {
		Dir     string `yaml:"dir"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"avatars"`

	Debug bool `yaml:"debug"`
}

func loadConfig(path string) (*ServiceConfig, error) {
	c := &ServiceConfig{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(c)

	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Storage.DSN == "" {
		c.Storage.DSN = "file:authgate.db?cache=shared&_pragma=foreign_keys(1)"
	}
	if c.JWT.ExpirationHours == 0 {
		c.JWT.ExpirationHours = 24
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "authgate"
	}
	if c.JWT.PendingTTL == "" {
		c.JWT.PendingTTL = "10m"
	}
	if c.State.TTL == "" {
		c.State.TTL = "10m"
	}
	if c.Redirects.Success == "" {
		c.Redirects.Success = "/"
	}
	if c.Redirects.Confirm == "" {
		c.Redirects.Confirm = "/finish-signup"
	}
	if c.Redirects.Error == "" {
		c.Redirects.Error = "/login?error=auth_failed"
	}
	if c.Avatars.Dir == "" {
		c.Avatars.Dir = "data/avatars"
	}
	if c.Avatars.BaseURL == "" {
		c.Avatars.BaseURL = "/avatars"
	}

	return c, nil
}

func applyEnvOverrides(c *ServiceConfig) {
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("JWT_SIGNING_KEY"); ok {
		c.JWT.SigningKey = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvCSV("JWT_AUDIENCE"); ok {
		c.JWT.Audience = v
	}
	if v, ok := getEnvInt("JWT_EXPIRATION_HOURS"); ok {
		c.JWT.ExpirationHours = v
	}
	if v, ok := getEnvStr("JWT_PENDING_TTL"); ok {
		c.JWT.PendingTTL = v
	}
	if v, ok := getEnvStr("STATE_ENCRYPTION_KEY"); ok {
		c.State.EncryptionKey = v
	}
	if v, ok := getEnvStr("STATE_HMAC_KEY"); ok {
		c.State.HMACKey = v
	}
	if v, ok := getEnvStr("PROVIDER_CLIENT_ID"); ok {
		c.Provider.ClientID = v
	}
	if v, ok := getEnvStr("PROVIDER_CLIENT_SECRET"); ok {
		c.Provider.ClientSecret = v
	}
	if v, ok := getEnvStr("PROVIDER_CALLBACK_URL"); ok {
		c.Provider.CallbackURL = v
	}
	if v, ok := getEnvCSV("PROVIDER_SCOPES"); ok {
		c.Provider.Scopes = v
	}
	if v, ok := getEnvBool("COOKIES_SECURE"); ok {
		c.Cookies.Secure = v
	}
	if v, ok := getEnvStr("AVATARS_DIR"); ok {
		c.Avatars.Dir = v
	}
	if v, ok := getEnvStr("AVATARS_BASE_URL"); ok {
		c.Avatars.BaseURL = v
	}
	if v, ok := getEnvBool("DEBUG"); ok {
		c.Debug = v
	}
}

// PendingTTL parses the pending token duration, falling back to zero
// so the token service applies its own default.
func (c *ServiceConfig) PendingTTL() time.Duration {
	d, err := time.ParseDuration(c.JWT.PendingTTL)
	if err != nil {
		return 0
	}
	return d
}

// authgate.Config implementation, so the token service can be built
// straight from the loaded file.

func (c *ServiceConfig) GetSigningKey() string { return c.JWT.SigningKey }

func (c *ServiceConfig) GetTokenExpiration() int { return c.JWT.ExpirationHours }

func (c *ServiceConfig) GetPendingTokenDuration() time.Duration { return c.PendingTTL() }

func (c *ServiceConfig) GetIssuer() string { return c.JWT.Issuer }

func (c *ServiceConfig) GetAudience() []string { return c.JWT.Audience }

var _ authgate.Config = (*ServiceConfig)(nil)

// StateTTL parses the oauth state duration.
func (c *ServiceConfig) StateTTL() time.Duration {
	d, err := time.ParseDuration(c.State.TTL)
	if err != nil {
		return 0
	}
	return d
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}
