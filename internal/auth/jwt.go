package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Realm identifies the JWT authentication realm.
type Realm string

const (
	RealmPlayer Realm = "player"
	RealmAdmin  Realm = "admin"
)

// Claims holds the custom JWT claims for both realms.
type Claims struct {
	jwt.RegisteredClaims
	Realm      Realm  `json:"realm"`
	TelegramID int64  `json:"tg,omitempty"`    // player realm
	Username   string `json:"uname,omitempty"` // player realm
	Email      string `json:"email,omitempty"` // admin realm
	Role       string `json:"role,omitempty"`  // admin realm: viewer, editor, owner
}

// JWTManager handles token generation and validation.
type JWTManager struct {
	secret       []byte
	playerExpiry time.Duration
	adminExpiry  time.Duration
	now          func() time.Time
}

// NewJWTManager creates a JWT manager with realm-specific expiry durations.
func NewJWTManager(secret string, playerExpiry, adminExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:       []byte(secret),
		playerExpiry: playerExpiry,
		adminExpiry:  adminExpiry,
		now:          time.Now,
	}
}

// GeneratePlayerToken signs a token for a Telegram player.
func (m *JWTManager) GeneratePlayerToken(userID uuid.UUID, telegramID int64, username string) (string, error) {
	return m.sign(Claims{
		RegisteredClaims: m.registered(userID, m.playerExpiry),
		Realm:            RealmPlayer,
		TelegramID:       telegramID,
		Username:         username,
	})
}

// GenerateAdminToken signs a token for a back-office user.
func (m *JWTManager) GenerateAdminToken(adminID uuid.UUID, email, role string) (string, error) {
	if !ValidRole(role) {
		return "", fmt.Errorf("unknown admin role: %s", role)
	}
	return m.sign(Claims{
		RegisteredClaims: m.registered(adminID, m.adminExpiry),
		Realm:            RealmAdmin,
		Email:            email,
		Role:             role,
	})
}

func (m *JWTManager) registered(subjectID uuid.UUID, expiry time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		Subject:   subjectID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		ID:        uuid.New().String(),
	}
}

func (m *JWTManager) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT, returning claims if valid.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// ValidateTokenForRealm validates a token and ensures it belongs to the expected realm.
func (m *JWTManager) ValidateTokenForRealm(tokenString string, expectedRealm Realm) (*Claims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Realm != expectedRealm {
		return nil, fmt.Errorf("expected realm %s, got %s", expectedRealm, claims.Realm)
	}
	return claims, nil
}

// SubjectID parses the subject as a UUID.
func (c *Claims) SubjectID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subject %s: %w", strconv.Quote(c.Subject), err)
	}
	return id, nil
}
