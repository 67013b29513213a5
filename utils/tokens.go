package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"

	"hoy-server/models"
)

// AccessToken is the claims payload carried on every authenticated request.
type AccessToken struct {
	ID   uint   `json:"ID"`
	Role string `json:"role"`
}

type RefreshTokenInput struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenService signs access/refresh pairs and tracks refresh tokens in Redis
// so they can be rotated and revoked. Secrets and stores are injected;
// nothing here reads the environment.
type TokenService struct {
	AccessSecret  string
	RefreshSecret string
	DB            *gorm.DB
	Redis         *redis.Client

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewTokenService(accessSecret, refreshSecret string, db *gorm.DB, rdb *redis.Client) *TokenService {
	return &TokenService{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		DB:            db,
		Redis:         rdb,
		AccessTTL:     24 * time.Hour,
		RefreshTTL:    365 * 24 * time.Hour,
	}
}

// CreateTokenPair signs a fresh access/refresh pair for a user and registers
// the refresh token in the Redis allow-list. The access token embeds the
// user's current role.
func (s *TokenService) CreateTokenPair(ctx context.Context, id uint) (*jwt.TokenPair, error) {
	accessTokenSigner := jwt.NewSigner(jwt.HS256, s.AccessSecret, s.AccessTTL)
	refreshTokenSigner := jwt.NewSigner(jwt.HS256, s.RefreshSecret, s.RefreshTTL)

	userID := strconv.FormatUint(uint64(id), 10)
	refreshClaims := jwt.Claims{Subject: userID}

	// Load role for embedding into access token
	var u models.User
	role := "user"
	if err := s.DB.Select("id, role").First(&u, id).Error; err == nil && u.Role != "" {
		role = u.Role
	}

	accessTokenClaims := AccessToken{
		ID:   id,
		Role: role,
	}

	accessToken, err := accessTokenSigner.Sign(accessTokenClaims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := refreshTokenSigner.Sign(refreshClaims)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	var tokenPair jwt.TokenPair
	tokenPair.AccessToken = accessToken
	tokenPair.RefreshToken = refreshToken

	if err := s.Redis.Set(ctx, string(refreshToken), "true", s.RefreshTTL+5*time.Minute).Err(); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &tokenPair, nil
}

// ConsumeRefreshToken checks a presented refresh token against the
// allow-list and removes it, so each refresh token is usable exactly once.
func (s *TokenService) ConsumeRefreshToken(ctx context.Context, token string) (bool, error) {
	valid, err := s.Redis.Get(ctx, token).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up refresh token: %w", err)
	}
	if valid != "true" {
		return false, nil
	}
	if err := s.Redis.Del(ctx, token).Err(); err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return true, nil
}

// GenerateShortToken returns a URL-safe random string of the given length (bytes*2 hex).
func GenerateShortToken(n int) string {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return ""
	}
	// hex encoding doubles length; that's fine for uniqueness and safety
	const hex = "0123456789abcdef"
	out := make([]byte, n*2)
	for i, v := range b {
		out[i*2] = hex[v>>4]
		out[i*2+1] = hex[v&0x0f]
	}
	return string(out)
}
