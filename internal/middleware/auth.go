package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"chat_engine/internal/domain"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

// ActorClaims: в sub лежит идентификатор актора, в actor_type его тип (user, bot).
type ActorClaims struct {
	ActorType string `json:"actor_type,omitempty"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	secret           []byte
	issuer           string
	defaultActorType string
	log              logger.Logger
}

func NewAuthMiddleware(secret, issuer, defaultActorType string, log logger.Logger) *AuthMiddleware {
	if defaultActorType == "" {
		defaultActorType = "user"
	}
	return &AuthMiddleware{
		secret:           []byte(secret),
		issuer:           issuer,
		defaultActorType: defaultActorType,
		log:              log,
	}
}

// RequireAuth принимает токен из заголовка Authorization, а для websocket
// также из параметра access_token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		actor, err := m.ParseToken(tokenString)
		if err != nil {
			m.log.Debug("Token validation failed", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("access_token")
		return token, token != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (m *AuthMiddleware) ParseToken(tokenString string) (domain.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, err
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return domain.Actor{}, fmt.Errorf("invalid token claims")
	}
	actorType := claims.ActorType
	if actorType == "" {
		actorType = m.defaultActorType
	}
	return domain.NewActor(actorType, claims.Subject), nil
}

// IssueToken выпускает токен доступа для актора.
func (m *AuthMiddleware) IssueToken(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ActorClaims{
		ActorType: actor.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ActorFrom возвращает аутентифицированного актора запроса.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
