package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

func GenerateSecureCode() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func MustGenerateSecureCode() string {
	code, err := GenerateSecureCode()
	if err != nil {
		panic("failed to generate secure code: " + err.Error())
	}
	return code
}

// GenerateWalletNumber produces a user-facing wallet number of the
// form QRW-1234-5678-9012. Collisions are caught by the unique index.
func GenerateWalletNumber() (string, error) {
	groups := make([]string, 3)
	max := big.NewInt(10000)
	for i := range groups {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		groups[i] = fmt.Sprintf("%04d", n.Int64())
	}
	return fmt.Sprintf("QRW-%s-%s-%s", groups[0], groups[1], groups[2]), nil
}

// HashIP returns a salted SHA-256 of a caller address. Audit rows
// store only this hash, never the raw IP.
func HashIP(salt, ip string) string {
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])
}
