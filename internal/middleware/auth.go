// Package middleware provides authentication, logging, tracing, metrics and
// rate limiting middleware for the HTTP API.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"artvault/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "artvault-api"
	TokenAudience = "artvault-client"
	TokenTTL      = 7 * 24 * time.Hour

	blacklistPrefix = "blacklist:"
	claimsLocal     = "claims"
)

// Claims is the verified subset of a token.
type Claims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// Authenticator verifies HS256 bearer tokens and consults the Redis JTI
// blacklist. A nil Redis client skips the blacklist.
type Authenticator struct {
	secret []byte
	rdb    *redis.Client
}

func NewAuthenticator(secret string, rdb *redis.Client) *Authenticator {
	return &Authenticator{secret: []byte(secret), rdb: rdb}
}

// Secret returns the signing key.
func (a *Authenticator) Secret() []byte { return a.secret }

// Parse validates signature, expiry, issuer, and audience, then checks the
// blacklist. Every failure is UNAUTHORIZED.
func (a *Authenticator) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, models.NewUnauthorizedError("Invalid user ID in token")
	}

	claims := &Claims{UserID: uint(userID)}
	claims.Username, _ = mc["username"].(string)
	claims.JTI, _ = mc["jti"].(string)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	if claims.JTI != "" && a.rdb != nil {
		revoked, err := a.rdb.Exists(ctx, blacklistPrefix+claims.JTI).Result()
		if err == nil && revoked > 0 {
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}
	return claims, nil
}

// Revoke blacklists the token ID until the token would have expired anyway.
func (a *Authenticator) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.JTI == "" {
		return models.NewValidationError("Token has no ID")
	}
	if a.rdb == nil {
		return models.NewUnavailableError("redis", errors.New("token blacklist is not configured"))
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := a.rdb.Set(ctx, blacklistPrefix+claims.JTI, "1", ttl).Err(); err != nil {
		return models.NewUnavailableError("redis", fmt.Errorf("blacklist token: %w", err))
	}
	return nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Required enforces a valid bearer token.
func (a *Authenticator) Required() fiber.Handler {
	return a.handler(BearerToken, true)
}

// WebSocketRequired also accepts the token as a "token" query parameter,
// since browsers cannot set headers on websocket upgrades.
func (a *Authenticator) WebSocketRequired() fiber.Handler {
	return a.handler(func(c *fiber.Ctx) string {
		if tok := BearerToken(c); tok != "" {
			return tok
		}
		return c.Query("token")
	}, true)
}

// Optional identifies the caller when a valid token is present and lets
// anonymous or invalid requests through as anonymous.
func (a *Authenticator) Optional() fiber.Handler {
	return a.handler(BearerToken, false)
}

func (a *Authenticator) handler(extract func(*fiber.Ctx) string, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := extract(c)
		if tokenString == "" {
			if !required {
				return c.Next()
			}
			return models.RespondWithAppError(c, models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := a.Parse(c.UserContext(), tokenString)
		if err != nil {
			if !required {
				return c.Next()
			}
			return models.RespondWithAppError(c, err)
		}

		c.Locals("userID", claims.UserID)
		c.Locals(claimsLocal, claims)
		// Sync to UserContext for logging and downstream services
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, claims.UserID))
		return c.Next()
	}
}

// ClaimsFrom returns the claims stored by an auth handler, or nil.
func ClaimsFrom(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(claimsLocal).(*Claims)
	return claims
}

// UserID returns the authenticated user ID, or 0 for anonymous requests.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}
