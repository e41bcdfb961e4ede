package middelware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"casetrack-backend/models"
	"casetrack-backend/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by AuthMiddleware
const (
	ActorKey  = "actor"
	ClaimsKey = "jwt_claims"
)

// JWTManager verifies bearer tokens and turns their claims into an Actor
type JWTManager struct {
	Config *models.Config
	Logger logger.Logger
	now    func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(cfg *models.Config, log logger.Logger) *JWTManager {
	return &JWTManager{
		Config: cfg,
		Logger: log,
		now:    time.Now,
	}
}

// GenerateToken signs a token for actor. Tokens are normally issued by the
// identity service; this is used by tooling and tests.
func (j *JWTManager) GenerateToken(actor *models.Actor, ttl time.Duration) (string, error) {
	now := j.now()
	claims := models.JWTClaims{
		UserID:      actor.UserID,
		Email:       actor.Email,
		Name:        actor.Name,
		Role:        actor.Role,
		Designation: actor.Designation,
		Contact:     actor.Contact,
		Permissions: actor.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   actor.UserID,
			Issuer:    j.Config.AppName,
			Audience:  jwt.ClaimStrings{j.Config.AppName},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(j.Config.JWTSecret))
	if err != nil {
		j.Logger.Errorf("Failed to sign JWT token: %v", err)
		return "", err
	}

	j.Logger.Debugf("Generated JWT token for user: %s", actor.UserID)
	return tokenString, nil
}

// ValidateToken parses tokenString and checks its signature, lifetime and
// the identity it carries.
func (j *JWTManager) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Only HS256 is accepted
		if method, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		} else if method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("invalid signing algorithm: %v", method.Alg())
		}
		return []byte(j.Config.JWTSecret), nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		j.Logger.Errorf("Failed to parse JWT token: %v", err)
		return nil, err
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		j.Logger.Error("Invalid JWT token")
		return nil, fmt.Errorf("invalid token")
	}

	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("token has no expiry")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user id")
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("token carries unknown role %q", claims.Role)
	}

	j.Logger.Debugf("Successfully validated JWT token for user: %s", claims.UserID)
	return claims, nil
}

// AuthMiddleware validates the bearer token and stores the caller's Actor
// in the gin context.
func (j *JWTManager) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			j.Logger.Error("Missing Authorization header")
			abortUnauthorized(c, "Missing Authorization header", "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			j.Logger.Error("Invalid Authorization header format")
			abortUnauthorized(c, "Invalid Authorization header format", "Authorization header must be in format: Bearer <token>")
			return
		}

		claims, err := j.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			j.Logger.Errorf("Token validation failed: %v", err)
			abortUnauthorized(c, "Invalid or expired token", err.Error())
			return
		}

		c.Set(ActorKey, claims.Actor())
		c.Set(ClaimsKey, claims)

		j.Logger.Debugf("User authenticated: %s (%s)", claims.UserID, claims.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in roles
func (j *JWTManager) RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			j.Logger.Error("Actor not found in context")
			abortUnauthorized(c, "Authentication required", "User not authenticated")
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		j.Logger.Errorf("User %s with role %s denied, required one of %v", actor.UserID, actor.Role, roles)
		c.AbortWithStatusJSON(http.StatusForbidden, models.APIResponse{
			Status:  "error",
			Code:    http.StatusForbidden,
			Message: "Insufficient permissions",
			Error: &models.APIError{
				Type:    string(models.KindUnauthorized),
				Details: fmt.Sprintf("Required role: %v", roles),
			},
		})
	}
}

// ActorFrom returns the authenticated caller stored by AuthMiddleware
func ActorFrom(c *gin.Context) (*models.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return nil, false
	}
	actor, ok := v.(*models.Actor)
	return actor, ok && actor != nil
}

func abortUnauthorized(c *gin.Context, message, details string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.APIResponse{
		Status:  "error",
		Code:    http.StatusUnauthorized,
		Message: message,
		Error: &models.APIError{
			Type:    "AuthenticationError",
			Details: details,
		},
	})
}
