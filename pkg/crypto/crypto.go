package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"math/big"
)

// SaltLength is the length of the per-project secret generated at creation.
const SaltLength = 12

const saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomSalt returns a random token of SaltLength characters drawn from
// [a-zA-Z0-9]. The token is generated with crypto/rand.
func RandomSalt() (string, error) {
	buf := make([]byte, SaltLength)
	max := big.NewInt(int64(len(saltAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = saltAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// SignShare computes the signature for a project share link. The project salt
// is the HMAC key, so a signature is only valid for the project it was issued
// for and is invalidated if the salt ever rotates.
func SignShare(projectID, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(projectID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyShare reports whether sig is a valid share signature for the project.
func VerifyShare(projectID, salt, sig string) bool {
	expected := SignShare(projectID, salt)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) == 1
}
