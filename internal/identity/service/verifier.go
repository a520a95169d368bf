package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/commercekit/paywall/internal/config"
	"github.com/commercekit/paywall/internal/identity/domain"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg  config.Config
	Log  *zap.Logger
	Keys domain.KeySource
}

// Verifier validates externally-issued bearer tokens against the
// provider's rotating key set.
type Verifier struct {
	cfg    config.IdentityConfig
	log    *zap.Logger
	keys   domain.KeySource
	parser *jwt.Parser
}

func NewVerifier(p Params) domain.TokenVerifier {
	return &Verifier{
		cfg:  p.Cfg.Identity,
		log:  p.Log.Named("identity.verifier"),
		keys: p.Keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{p.Cfg.Identity.Algorithm}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify checks the token's structure, signature and required claims.
// A key id missing from the current snapshot triggers exactly one forced
// refresh before the token is rejected; this absorbs provider key
// rotation without unbounded retries.
func (v *Verifier) Verify(ctx context.Context, token string) (*domain.Claims, error) {
	if !v.cfg.Configured() {
		return nil, domain.ErrNotConfigured
	}

	kid, err := v.keyID(token)
	if err != nil {
		return nil, err
	}

	snap, err := v.keys.Snapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	key, ok := snap.Lookup(kid)
	if !ok {
		snap, err = v.keys.Snapshot(ctx, true)
		if err != nil {
			return nil, err
		}
		key, ok = snap.Lookup(kid)
	}
	if !ok {
		v.log.Warn("token signed with unknown key id", zap.String("kid", kid))
		return nil, domain.ErrUnknownKey
	}

	claims := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key.PublicKey, nil
	})
	if err != nil {
		return nil, mapJWTError(err)
	}
	if !parsed.Valid {
		return nil, domain.ErrInvalidSignature
	}

	if v.cfg.EnforceAudience && v.cfg.Audience != "" {
		if err := requireAudience(claims, v.cfg.Audience); err != nil {
			return nil, err
		}
	}

	subject, _ := claims["sub"].(string)
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("%w: sub", domain.ErrMissingClaim)
	}

	out := &domain.Claims{
		Subject: subject,
		Raw:     map[string]any(claims),
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if iss, ok := claims["iss"].(string); ok {
		out.Issuer = iss
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	v.log.Debug("verified token",
		zap.String("sub", out.Subject),
		zap.Time("exp", out.ExpiresAt),
	)
	return out, nil
}

func (v *Verifier) keyID(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
	kid, ok := parsed.Header["kid"].(string)
	if !ok || kid == "" {
		return "", fmt.Errorf("%w: missing key id", domain.ErrMalformedToken)
	}
	return kid, nil
}

func requireAudience(claims jwt.MapClaims, want string) error {
	auds, err := claims.GetAudience()
	if err != nil {
		return domain.ErrInvalidAudience
	}
	for _, aud := range auds {
		if aud == want {
			return nil
		}
	}
	return domain.ErrInvalidAudience
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return domain.ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return domain.ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return domain.ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing), errors.Is(err, jwt.ErrTokenInvalidClaims):
		return domain.ErrMissingClaim
	default:
		return domain.ErrInvalidSignature
	}
}
