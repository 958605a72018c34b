package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the payload of backend-issued access tokens.
type JWTClaims struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	SubUnitID int    `json:"subWorkUnitId"`
	jwt.RegisteredClaims
}
