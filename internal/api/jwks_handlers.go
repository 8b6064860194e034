package api

import (
	"encoding/base64"
	"math/big"
	"net/http"

	"github.com/lavente-household/authcore/internal/api/helpers"
)

// jwk is a single RSA JSON Web Key, the public half of the Credential
// Codec's signing key.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// signingKeyID is fixed rather than rotated: there is no key rotation
// schedule here, just a single long-lived RS256 signing key.
const signingKeyID = "authcore-sig-1"

// JWKSHandler serves the RSA public key at /.well-known/jwks.json so
// resource servers can verify access tokens without calling back into this
// service.
func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pub := s.Codec.PublicKey()
		e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
		n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())

		helpers.RespondJSON(w, http.StatusOK, jwks{
			Keys: []jwk{{
				Kty: "RSA",
				Kid: signingKeyID,
				Use: "sig",
				N:   n,
				E:   e,
				Alg: "RS256",
			}},
		})
	}
}
