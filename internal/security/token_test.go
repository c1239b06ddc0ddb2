package security

import (
	"testing"
	"time"

	"carbooking-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)

	t.Run("Round trip", func(t *testing.T) {
		token, err := m.GenerateAccessToken(7, "jane@example.com", domain.UserRoleAdmin)
		require.NoError(t, err)

		claims, err := m.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, int32(7), claims.UserID)
		assert.Equal(t, domain.UserRoleAdmin, claims.Role)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := NewTokenManager(testSecret, -time.Minute)
		// a non-positive ttl falls back to the default, so sign an old token by hand
		claims := UserClaims{
			UserID: 7,
			Type:   TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				Issuer:    issuer,
				Audience:  jwt.ClaimStrings{audience},
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = expired.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewTokenManager("fedcba9876543210fedcba9876543210", time.Hour)
		token, err := other.GenerateAccessToken(7, "", domain.UserRoleCustomer)
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Wrong token type", func(t *testing.T) {
		claims := UserClaims{
			UserID: 7,
			Type:   "refresh",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
				Issuer:    issuer,
				Audience:  jwt.ClaimStrings{audience},
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
