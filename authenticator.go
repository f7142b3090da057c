package auth

import (
	"context"
	"reflect"

	goerrors "github.com/goliatone/go-errors"
)

// AuthResult is the shape every successful login, registration, and refresh
// returns to the glue layer.
type AuthResult struct {
	Token        string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenType    string   `json:"token_type"`
	UserID       string   `json:"user_id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
}

type Auther struct {
	provider     IdentityProvider
	registrar    AccountRegisterer
	signingKey   []byte
	logger       Logger
	tokenService TokenService
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetRefreshTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		signingKey:   []byte(opts.GetSigningKey()),
		logger:       defLogger{},
		tokenService: tokenService,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithRegistrar wires the account creation path used by Register
func (s *Auther) WithRegistrar(registrar AccountRegisterer) *Auther {
	s.registrar = registrar
	return s
}

// WithTokenService swaps the token codec, e.g. to inject a fixed clock
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies credentials and mints an access/refresh token pair. The
// identity provider owns the lockout state machine; rejections come back as
// the typed catalog errors.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return nil, ErrMismatchedHashAndPassword
	}

	return s.issueTokens(identity)
}

// Register creates the account and logs it straight in, issuing tokens
// exactly as the login success path does.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*AuthResult, error) {
	if s.registrar == nil {
		return nil, goerrors.New("authenticator has no registrar configured", goerrors.CategoryInternal)
	}

	user, err := s.registrar.RegisterUser(ctx, msg)
	if err != nil {
		s.logger.Error("Register user error", "error", err)
		return nil, err
	}

	return s.issueTokens(identityFromUser(user))
}

// Refresh validates the presented token and mints a fresh pair carrying the
// subject's current role set, so role changes take effect on refresh even
// though the prior token cannot be proactively invalidated.
func (s *Auther) Refresh(ctx context.Context, tokenString string) (*AuthResult, error) {
	// Unverified extraction first: the subject is only used to resolve the
	// account, never as an authorization decision.
	subject, err := s.tokenService.SubjectOf(tokenString)
	if err != nil {
		return nil, err
	}

	if _, err := s.tokenService.Validate(tokenString); err != nil {
		s.logger.Error("Refresh token validation failed", "error", err)
		return nil, err
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, subject)
	if err != nil {
		s.logger.Error("Refresh subject no longer resolves", "error", err)
		return nil, err
	}

	return s.issueTokens(identity)
}

// Authorize is the per-request gate every protected operation calls. It
// returns the subject ID when the token verifies and the subject holds at
// least one of the required roles.
func (s *Auther) Authorize(tokenString string, requiredRoles ...string) (string, error) {
	claims, err := s.tokenService.Validate(tokenString)
	if err != nil {
		return "", err
	}

	if !claims.HasAnyRole(requiredRoles...) {
		return "", decorate(ErrForbidden, map[string]any{
			"required_roles": requiredRoles,
		})
	}

	return claims.UserID(), nil
}

// SessionFromToken decodes a validated token into a Session for collaborators
// that want the claim set rather than a bare subject ID.
func (s *Auther) SessionFromToken(tokenString string) (Session, error) {
	claims, err := s.tokenService.Validate(tokenString)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

func (s *Auther) issueTokens(identity Identity) (*AuthResult, error) {
	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("failed to sign access token", "error", err)
		return nil, err
	}

	refresh, err := s.tokenService.GenerateRefresh(identity)
	if err != nil {
		s.logger.Error("failed to sign refresh token", "error", err)
		return nil, err
	}

	return &AuthResult{
		Token:        token,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		UserID:       identity.ID(),
		Username:     identity.Username(),
		Email:        identity.Email(),
		Roles:        identity.Roles(),
	}, nil
}

var _ Authenticator = (*Auther)(nil)
