package auth

import (
	"github.com/craftroot/storefront-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	CustomerRef string
	Role        enums.ActorRole
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	CustomerRef string          `json:"customer_ref"`
	Role        enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
