package authn

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes an access token from a refresh token so one can
// never be presented in place of the other.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken = errors.New("authn: invalid token")
	ErrExpiredToken = errors.New("authn: token expired")
	ErrWrongType    = errors.New("authn: wrong token type")
)

// Claims carries the request-scoped identity every authenticated request
// resolves from its access token.
type Claims struct {
	UserID string    `json:"sub"`
	OrgID  string    `json:"org_id"`
	Plan   string    `json:"plan"`
	Type   TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies access/refresh token pairs with one shared
// secret. The secret's minimum length is enforced by config validation
// before an Issuer is ever constructed.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// TokenPair is the pair issued at registration and login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IssuePair signs a fresh access token and refresh token for the given
// identity.
func (i *Issuer) IssuePair(userID, orgID, plan string) (TokenPair, error) {
	now := time.Now()

	access, err := i.sign(Claims{
		UserID: userID,
		OrgID:  orgID,
		Plan:   plan,
		Type:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := i.sign(Claims{
		UserID: userID,
		OrgID:  orgID,
		Plan:   plan,
		Type:   TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueAccessToken signs a fresh access token only, used by the refresh
// endpoint. Refresh tokens are not rotated.
func (i *Issuer) IssueAccessToken(userID, orgID, plan string) (string, error) {
	now := time.Now()
	return i.sign(Claims{
		UserID: userID,
		OrgID:  orgID,
		Plan:   plan,
		Type:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	})
}

func (i *Issuer) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature and expiry and returns the claims if the token is
// of the expected type.
func (i *Issuer) Verify(tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != want {
		return nil, ErrWrongType
	}
	return claims, nil
}
