package models

import "github.com/golang-jwt/jwt/v5"

// Claims представляет стандартные поля JWT и пользовательские данные,
// которые мы включаем в токен.
type Claims struct {
	UserID               string `json:"user_id"`
	jwt.RegisteredClaims        // Встраиваем стандартные поля: ExpiresAt, IssuedAt, ID (JTI) и т.д.
}
