package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	secretKey = []byte("supersecret")
	tokenTTL  = 2 * time.Hour
)

// ConfigureTokens sets the signing secret and lifetime used by GenerateToken.
func ConfigureTokens(secret string, ttl time.Duration) {
	if secret != "" {
		secretKey = []byte(secret)
	}
	if ttl > 0 {
		tokenTTL = ttl
	}
}

func GenerateToken(email string, userId int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email":  email,
		"userId": userId,
		"exp":    time.Now().Add(tokenTTL).Unix(),
	})

	return token.SignedString(secretKey)
}

// VerifyToken 驗證 token 並回傳 userId
func VerifyToken(token string) (int64, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		// 檢查 algo
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey, nil
	})
	if err != nil {
		return 0, errors.New("could not parse token")
	}

	// 簽章正確也可能過期
	if !parsedToken.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid token claims")
	}
	raw, ok := claims["userId"].(float64)
	if !ok {
		return 0, errors.New("invalid token claims")
	}
	return int64(raw), nil
}
