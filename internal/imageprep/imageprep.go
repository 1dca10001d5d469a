// Package imageprep normalizes uploaded document bytes into PNG before they
// are handed to a recognition backend.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// Prepare normalizes the content type and converts the document to PNG.
// PDFs are rasterized (first page), HEIC/HEIF decoded with the pure-Go
// decoder, everything else goes through the standard image decoders.
// Returns the PNG bytes and whether a conversion occurred.
func Prepare(data []byte, contentType string) ([]byte, bool, error) {
	mime := strings.ToLower(strings.TrimSpace(contentType))
	if mime == "" {
		mime = "image/jpeg"
	}

	switch {
	case mime == "application/pdf":
		out, err := rasterizePDF(data)
		if err != nil {
			return nil, false, fmt.Errorf("rasterize pdf: %w", err)
		}
		return out, true, nil
	case mime == "image/png" && !isHEIC(data, mime):
		return data, false, nil
	default:
		out, err := toPNG(data, mime)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}
}

// rasterizePDF renders the first page of a PDF as PNG. Photographed reports
// are single-page in practice.
func rasterizePDF(data []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func toPNG(data []byte, mime string) ([]byte, error) {
	var img image.Image
	var err error

	if isHEIC(data, mime) {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode heic: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC sniffs the ftyp box brands used by HEIC/HEIF containers.
func isHEIC(data []byte, mime string) bool {
	if strings.Contains(mime, "heic") || strings.Contains(mime, "heif") {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	default:
		return false
	}
}
