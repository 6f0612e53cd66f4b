package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/linskybing/club-intake/internal/config"
	"github.com/linskybing/club-intake/pkg/response"
	"github.com/linskybing/club-intake/pkg/types"
	"github.com/linskybing/club-intake/pkg/utils"
	"go.uber.org/zap"
)

var (
	ErrMissingToken   = errors.New("authorization required (header, cookie or token query)")
	ErrDomainRejected = errors.New("email domain not allowed")
)

// DevIdentity is attached when the development bypass token is presented.
var DevIdentity = types.Identity{
	UID:   "dev-admin-uid",
	Email: "dev-admin@localhost",
	Role:  types.RoleAdmin,
	IsDev: true,
}

// Authenticator verifies identity-provider tokens and derives the caller's role.
type Authenticator struct {
	key           []byte
	issuer        string
	domains       []string
	adminKeywords []string
	devToken      string
	log           *zap.SugaredLogger
}

// NewAuthenticator builds an Authenticator. The bypass token is ignored
// outside development.
func NewAuthenticator(cfg config.AuthConfig, development bool, log *zap.SugaredLogger) *Authenticator {
	a := &Authenticator{
		key:           []byte(cfg.JWTSecret),
		issuer:        cfg.Issuer,
		domains:       cfg.AllowedEmailDomains,
		adminKeywords: cfg.AdminEmailKeywords,
		log:           log,
	}
	if development {
		a.devToken = cfg.DevBypassToken
	}
	return a
}

// GenerateToken issues a signed token. Used by tooling and tests; production
// tokens come from the identity provider.
func (a *Authenticator) GenerateToken(uid, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &types.Claims{
		UID:   uid,
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    a.issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

// ParseToken validates signature, expiry and issuer.
func (a *Authenticator) ParseToken(tokenStr string) (*types.Claims, error) {
	if len(a.key) == 0 {
		return nil, errors.New("token verification is not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UID == "" {
		claims.UID = claims.Subject
	}
	if claims.UID == "" {
		return nil, errors.New("token carries no subject")
	}
	return claims, nil
}

// Verify turns a raw token into an Identity.
func (a *Authenticator) Verify(tokenStr string) (types.Identity, error) {
	if a.devToken != "" && tokenStr == a.devToken {
		a.log.Warnw("development bypass token accepted")
		return DevIdentity, nil
	}

	claims, err := a.ParseToken(tokenStr)
	if err != nil {
		return types.Identity{}, err
	}
	if !a.domainAllowed(claims.Email) {
		return types.Identity{}, ErrDomainRejected
	}
	return types.Identity{
		UID:   claims.UID,
		Email: claims.Email,
		Role:  a.roleFor(claims),
	}, nil
}

func (a *Authenticator) roleFor(claims *types.Claims) string {
	if claims.Role != "" {
		return claims.Role
	}
	email := strings.ToLower(claims.Email)
	for _, kw := range a.adminKeywords {
		if kw != "" && strings.Contains(email, strings.ToLower(kw)) {
			return types.RoleAdmin
		}
	}
	return types.RoleTeacher
}

func (a *Authenticator) domainAllowed(email string) bool {
	if len(a.domains) == 0 {
		return true
	}
	email = strings.ToLower(email)
	for _, d := range a.domains {
		if strings.HasSuffix(email, "@"+strings.ToLower(strings.TrimPrefix(d, "@"))) {
			return true
		}
	}
	return false
}

// extractToken reads a Bearer header, then the token cookie, then the token
// query parameter (browsers cannot set headers on websocket upgrades).
func extractToken(c *gin.Context) (string, error) {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", errors.New("authorization header format must be Bearer {token}")
		}
		return parts[1], nil
	}
	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie, nil
	}
	if q := c.Query("token"); q != "" {
		return q, nil
	}
	return "", ErrMissingToken
}

// JWT rejects requests without a valid token.
func (a *Authenticator) JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Unauthorized", Message: err.Error()})
			return
		}
		id, err := a.Verify(tokenStr)
		if errors.Is(err, ErrDomainRejected) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorResponse{Error: "Forbidden", Message: err.Error()})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{
				Error:   "Unauthorized",
				Message: fmt.Sprintf("invalid token: %v", err),
			})
			return
		}
		c.Set(utils.IdentityKey, id)
		c.Next()
	}
}

// Optional attaches the caller when a valid token is present and lets
// anonymous requests through.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err == nil {
			if id, verr := a.Verify(tokenStr); verr == nil {
				c.Set(utils.IdentityKey, id)
			} else {
				a.log.Debugw("ignoring invalid token on public route", "path", c.FullPath(), "error", verr)
			}
		}
		c.Next()
	}
}
