package storage

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type URLClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// Signer выдает и проверяет подписанные временные ссылки.
type Signer struct {
	secret []byte
	issuer string
}

func NewSigner(secret, issuer string) *Signer {
	return &Signer{secret: []byte(secret), issuer: issuer}
}

func (s *Signer) Token(name string, ttl time.Duration, now time.Time) (string, error) {
	claims := URLClaims{
		Path: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// SignURL добавляет токен к публичному URL файла.
func (s *Signer) SignURL(rawURL, name string, ttl time.Duration, now time.Time) (string, error) {
	token, err := s.Token(name, ttl, now)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify возвращает путь файла из действующего токена.
func (s *Signer) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &URLClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return "", err
	}
	if claims, ok := token.Claims.(*URLClaims); ok && token.Valid {
		return claims.Path, nil
	}
	return "", fmt.Errorf("invalid token claims")
}
