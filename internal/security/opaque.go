package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewOpaqueToken returns a random, non-self-describing token value.
// Its validity is established only by store lookup.
func NewOpaqueToken() string {
	return uuid.NewString()
}

// HashOpaqueToken produces the storage form of an opaque token. The
// pepper keeps a leaked table from being replayed directly.
func HashOpaqueToken(token, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
