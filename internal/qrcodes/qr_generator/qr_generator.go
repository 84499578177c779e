package qr_generator

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// Generator renders code strings into base64 PNG payloads. The encoding is a
// pure function of the input string; everything about what the code means
// lives elsewhere.
type Generator struct {
	size int
}

func NewGenerator(size int) *Generator {
	if size <= 0 {
		size = 256
	}
	return &Generator{size: size}
}

// EncodeBase64 returns the PNG for a code, base64-encoded for storage.
func (g *Generator) EncodeBase64(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, g.size)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// EncodePNG returns the raw PNG bytes for a code.
func (g *Generator) EncodePNG(code string) ([]byte, error) {
	return qrcode.Encode(code, qrcode.Medium, g.size)
}
