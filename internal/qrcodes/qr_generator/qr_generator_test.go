package qr_generator_test

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/kodiidok/qrc/internal/qrcodes/qr_generator"
)

func TestEncodeBase64(t *testing.T) {
	gen := qr_generator.NewGenerator(256)

	encoded, err := gen.EncodeBase64("VISITOR_1724200000_A1B2C3D4")
	if err != nil {
		t.Fatalf("Failed to encode QR code: %v", err)
	}
	if encoded == "" {
		t.Fatal("Encoded QR code is empty")
	}

	png, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("Encoded output is not valid base64: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("Decoded payload is not a PNG")
	}
}

func TestEncodePNGDeterministic(t *testing.T) {
	gen := qr_generator.NewGenerator(256)

	first, err := gen.EncodePNG("QR_0001")
	if err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	second, err := gen.EncodePNG("QR_0001")
	if err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Expected identical PNGs for the same code")
	}

	other, err := gen.EncodePNG("QR_0002")
	if err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	if bytes.Equal(first, other) {
		t.Error("Expected different PNGs for different codes")
	}
}

func TestDefaultSize(t *testing.T) {
	gen := qr_generator.NewGenerator(0)

	png, err := gen.EncodePNG("QR_0001")
	if err != nil {
		t.Fatalf("Failed to encode with default size: %v", err)
	}
	if len(png) == 0 {
		t.Error("Expected non-empty PNG with default size")
	}
}
