package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Errors returned by Codec.Decode, distinguished so callers can tell a
// forged/tampered envelope apart from a merely expired one without
// inspecting jwt-library internals.
var (
	ErrMalformed    = errors.New("credential malformed")
	ErrBadSignature = errors.New("credential signature invalid")
	ErrExpired      = errors.New("credential expired")
)

// Typ values carried in the "typ" claim. "access" and "refresh" are opposite
// ends of one rotation chain; "llt" is a standalone, non-expiring admin
// credential.
const (
	TypAccess  = "access"
	TypRefresh = "refresh"
	TypLLT     = "llt"
	// TypPreAuth is a short-lived, unpersisted credential binding a user
	// who has passed the password check but not yet the MFA challenge.
	TypPreAuth = "pre_auth"
)

const preAuthTTL = 5 * time.Minute

// Claims is the unified envelope every credential kind carries: {sub, jti,
// typ, iat, exp, fresh?}, with sub/jti/iat/exp riding on
// jwt.RegisteredClaims' Subject/ID/IssuedAt/ExpiresAt fields. Access and
// refresh credentials are both signed JWTs keyed by jti, rather than
// opaque hashed secrets — see DESIGN.md's Credential Codec entry.
type Claims struct {
	Typ   string `json:"typ"`
	Fresh bool   `json:"fresh,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

func (c Claims) JTI() (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}

// Codec encodes and verifies the RS256 envelope. The private key signs; the
// public half (also embedded in key, since *rsa.PrivateKey carries it) is
// exposed separately for JWKS publication.
type Codec struct {
	key        *rsa.PrivateKey
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCodec(key *rsa.PrivateKey, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{key: key, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// ParsePrivateKeyPEM decodes the RSA signing key from PEM, accepting either
// PKCS1 ("RSA PRIVATE KEY") or PKCS8 ("PRIVATE KEY") encoding — cmd/keygen
// emits PKCS1, but operators may bring their own PKCS8 key.
func ParsePrivateKeyPEM(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block found in JWT_PRIVATE_KEY")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}

func (c *Codec) PublicKey() *rsa.PublicKey {
	return &c.key.PublicKey
}

// Encode signs a credential envelope for the given user/jti/type. fresh is
// only meaningful (and only ever true) for typ == TypAccess.
func (c *Codec) Encode(userID, jti uuid.UUID, typ string, fresh bool) (string, error) {
	now := time.Now()
	claims := Claims{
		Typ:   typ,
		Fresh: fresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID.String(),
			ID:       jti.String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	switch typ {
	case TypAccess:
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.accessTTL))
	case TypRefresh:
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.refreshTTL))
	case TypPreAuth:
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(preAuthTTL))
	case TypLLT:
		// no exp: llt never expires.
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(c.key)
}

// Decode verifies signature and expiry and returns the claim set, or one of
// ErrMalformed / ErrBadSignature / ErrExpired.
func (c *Codec) Decode(envelope string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(envelope, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrBadSignature
		}
		return &c.key.PublicKey, nil
	})

	switch {
	case err == nil && token.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Claims{}, ErrMalformed
	default:
		return Claims{}, ErrMalformed
	}
}
