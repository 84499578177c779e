package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kodiidok/qrc/internal/qrcodes/qr_generator"
)

// Offline renderer for print shops: takes the CSV produced by the export
// endpoint and writes one PNG per code.
func main() {
	input := flag.String("input", "qr_codes.csv", "CSV file with a qr_code column")
	outDir := flag.String("out", "qr_images", "directory to write PNG files into")
	size := flag.Int("size", 512, "image size in pixels")
	flag.Parse()

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *input, err)
	}
	defer f.Close()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		log.Fatalf("Failed to read CSV header: %v", err)
	}
	codeIdx := -1
	for i, name := range header {
		if strings.TrimSpace(strings.ToLower(name)) == "qr_code" {
			codeIdx = i
			break
		}
	}
	if codeIdx < 0 {
		log.Fatal("CSV has no qr_code column")
	}

	gen := qr_generator.NewGenerator(*size)

	written := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read CSV record: %v", err)
		}
		code := strings.TrimSpace(record[codeIdx])
		if code == "" {
			continue
		}

		png, err := gen.EncodePNG(code)
		if err != nil {
			log.Fatalf("Failed to render %s: %v", code, err)
		}

		path := filepath.Join(*outDir, fmt.Sprintf("%s.png", code))
		if err := os.WriteFile(path, png, 0644); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		written++
	}

	log.Printf("Wrote %d PNG files to %s", written, *outDir)
}
