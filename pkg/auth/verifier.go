package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/travigo/corridor/pkg/util"
)

var (
	ErrMissingToken = errors.New("authentication token is required")
	ErrInvalidToken = errors.New("authentication token is invalid")
)

const defaultIssuer = "corridor"
const defaultAudience = "corridor-relay"

// Claims are the verified details of a credential
type Claims struct {
	Subject string
	Scope   string
	Role    string
}

// Verifier checks a pre-signed credential. Issuing credentials happens elsewhere.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Scope string `json:"scope"`
	Role  string `json:"role"`
}

// Validate does nothing, but we need it to satisfy validator.CustomClaims interface.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

type JWTVerifier struct {
	validator *validator.Validator
}

func newJWTVerifier(keyFunc func(context.Context) (interface{}, error), algorithm validator.SignatureAlgorithm, issuer string, audience string) (*JWTVerifier, error) {
	jwtValidator, err := validator.New(
		keyFunc,
		algorithm,
		issuer,
		[]string{audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return &JWTVerifier{validator: jwtValidator}, nil
}

// NewSecretVerifier validates HS256 tokens signed with a shared secret
func NewSecretVerifier(secret string, issuer string, audience string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}

	return newJWTVerifier(func(ctx context.Context) (interface{}, error) {
		return []byte(secret), nil
	}, validator.HS256, issuer, audience)
}

// NewAuth0Verifier validates RS256 tokens against the tenant's published key set
func NewAuth0Verifier(domain string, audience string) (*JWTVerifier, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	return newJWTVerifier(provider.KeyFunc, validator.RS256, issuerURL.String(), audience)
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	claimsI, err := v.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	validated := claimsI.(*validator.ValidatedClaims)
	claims := &Claims{Subject: validated.RegisteredClaims.Subject}

	if custom, ok := validated.CustomClaims.(*CustomClaims); ok {
		claims.Scope = custom.Scope
		claims.Role = custom.Role
	}

	return claims, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// GetVerifier builds a verifier from the environment. A shared secret takes
// precedence over an Auth0 tenant.
func GetVerifier() (Verifier, error) {
	env := util.GetEnvironmentVariables()

	issuer := defaultIssuer
	if env["CORRIDOR_JWT_ISSUER"] != "" {
		issuer = env["CORRIDOR_JWT_ISSUER"]
	}
	audience := defaultAudience
	if env["CORRIDOR_JWT_AUDIENCE"] != "" {
		audience = env["CORRIDOR_JWT_AUDIENCE"]
	}

	if env["CORRIDOR_JWT_SECRET"] != "" {
		return NewSecretVerifier(env["CORRIDOR_JWT_SECRET"], issuer, audience)
	}

	if env["AUTH0_DOMAIN"] != "" {
		if env["AUTH0_AUDIENCE"] != "" {
			audience = env["AUTH0_AUDIENCE"]
		}
		return NewAuth0Verifier(env["AUTH0_DOMAIN"], audience)
	}

	return nil, errors.New("no credential verifier configured, set CORRIDOR_JWT_SECRET or AUTH0_DOMAIN")
}
