package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateVisitorCode returns a candidate visitor code of the form
// VISITOR_<unix>_<8 random upper alnum>. Uniqueness is NOT guaranteed here;
// the QR service checks candidates against the active code pool.
func GenerateVisitorCode() string {
	timestamp := time.Now().Unix()
	suffix := make([]byte, 8)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			// crypto/rand should never fail; fall back to a time-derived index
			n = big.NewInt(time.Now().UnixNano() % int64(len(codeAlphabet)))
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("VISITOR_%d_%s", timestamp, suffix)
}

// SeedLabel returns the sequential label used for seeded code pools, e.g. QR_0001.
func SeedLabel(i int) string {
	return fmt.Sprintf("QR_%04d", i)
}
