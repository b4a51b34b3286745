package service

import (
	"strings"
	"time"

	"github.com/eksporyuk-migrate/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims 管理接口令牌声明
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminRole 管理接口唯一角色
const AdminRole = "migration_admin"

// AdminTokenService 管理接口 HS256 令牌签发与校验
type AdminTokenService struct {
	secret      []byte
	issuer      string
	expireHours int
}

// NewAdminTokenService 创建令牌服务
func NewAdminTokenService(cfg config.JWTConfig) *AdminTokenService {
	return &AdminTokenService{
		secret:      []byte(strings.TrimSpace(cfg.SecretKey)),
		issuer:      strings.TrimSpace(cfg.Issuer),
		expireHours: cfg.ExpireHours,
	}
}

// Issue 签发令牌
func (s *AdminTokenService) Issue(subject string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrTokenSecretMissing
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, ErrInvalidInput
	}
	hours := s.expireHours
	if hours <= 0 {
		hours = 24
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(hours) * time.Hour)
	claims := AdminClaims{
		Role: AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify 校验令牌
func (s *AdminTokenService) Verify(tokenString string) (*AdminClaims, error) {
	if len(s.secret) == 0 {
		return nil, ErrTokenSecretMissing
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(strings.TrimSpace(tokenString), &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid && claims.Role == AdminRole {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
