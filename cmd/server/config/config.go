package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. Values come from a YAML file
// with environment overrides for secrets.
type Config struct {
	Server      Server      `yaml:"server"`
	Auth        Auth        `yaml:"auth"`
	Admin       Admin       `yaml:"admin"`
	Persistence Persistence `yaml:"persistence"`
	Logging     Logging     `yaml:"logging"`
}

type Server struct {
	Address string `yaml:"address"`
}

func (s Server) GetAddress() string {
	if s.Address == "" {
		return ":8080"
	}
	return s.Address
}

type Auth struct {
	SigningKey             string   `yaml:"signing_key"`
	SigningMethod          string   `yaml:"signing_method"`
	ContextKey             string   `yaml:"context_key"`
	TokenExpiration        int      `yaml:"token_expiration"`
	RefreshTokenExpiration int      `yaml:"refresh_token_expiration"`
	TokenLookup            string   `yaml:"token_lookup"`
	AuthScheme             string   `yaml:"auth_scheme"`
	Issuer                 string   `yaml:"issuer"`
	Audience               []string `yaml:"audience"`
}

func (a Auth) GetSigningKey() string { return a.SigningKey }

func (a Auth) GetSigningMethod() string {
	if a.SigningMethod == "" {
		return "HS256"
	}
	return a.SigningMethod
}

func (a Auth) GetContextKey() string {
	if a.ContextKey == "" {
		return "user"
	}
	return a.ContextKey
}

// GetTokenExpiration is the access token lifetime in hours
func (a Auth) GetTokenExpiration() int {
	if a.TokenExpiration <= 0 {
		return 1
	}
	return a.TokenExpiration
}

// GetRefreshTokenExpiration is the refresh token lifetime in hours
func (a Auth) GetRefreshTokenExpiration() int {
	if a.RefreshTokenExpiration <= 0 {
		return 24 * 7
	}
	return a.RefreshTokenExpiration
}

func (a Auth) GetTokenLookup() string {
	if a.TokenLookup == "" {
		return "header:Authorization"
	}
	return a.TokenLookup
}

func (a Auth) GetAuthScheme() string {
	if a.AuthScheme == "" {
		return "Bearer"
	}
	return a.AuthScheme
}

func (a Auth) GetIssuer() string { return a.Issuer }

func (a Auth) GetAudience() []string { return a.Audience }

// Admin describes the bootstrap administrator account. When email and
// password are both set and no account exists for the email, the server
// creates it at startup with the administrator role.
type Admin struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

func (a Admin) Enabled() bool {
	return a.Email != "" && a.Password != ""
}

type Persistence struct {
	Driver                string `yaml:"driver"`
	DSN                   string `yaml:"dsn"`
	Debug                 bool   `yaml:"debug"`
	PingTimeoutExpression string `yaml:"ping_timeout"`
}

func (p Persistence) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p Persistence) GetDSN() string {
	if p.DSN == "" {
		return "file::memory:?cache=shared"
	}
	return p.DSN
}

func (p Persistence) GetDebug() bool { return p.Debug }

func (p Persistence) GetPingTimeout() time.Duration {
	if p.PingTimeoutExpression == "" {
		return 5 * time.Second
	}
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", p.PingTimeoutExpression),
		)
	}
	return dur
}

type Logging struct {
	Level string `yaml:"level"`
}

func (l Logging) GetLevel() string {
	if l.Level == "" {
		return "info"
	}
	return l.Level
}

func (c Config) Validate() error {
	if c.Auth.GetSigningKey() == "" {
		return fmt.Errorf("auth.signing_key is required")
	}
	if len(c.Auth.GetSigningKey()) < 32 {
		return fmt.Errorf("auth.signing_key must be at least 32 bytes")
	}
	return nil
}

// Load reads the YAML config at path, then applies environment overrides.
// The signing key can always come from AUTH_SIGNING_KEY so it never needs to
// live in the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if key := os.Getenv("AUTH_SIGNING_KEY"); key != "" {
		cfg.Auth.SigningKey = key
	}

	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		cfg.Admin.Email = email
	}

	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		cfg.Admin.Password = password
	}

	if dsn := os.Getenv("PERSISTENCE_DSN"); dsn != "" {
		cfg.Persistence.DSN = dsn
	}

	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.Server.Address = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
