package rasterize

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"strings"

	"github.com/gen2brain/heic"
)

// DataURI builds a base64 data URI for inline display.
func DataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// isHEICData sniffs the ftyp box for HEIC/HEIF brands. Phone photos often
// arrive with a generic content type, so the bytes are checked too.
func isHEICData(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

// isHEICMimeType checks whether the MIME type indicates HEIC/HEIF.
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// NormalizeImage prepares an uploaded image for the extraction call. JPEG
// and PNG pass through untouched; HEIC/HEIF and anything else decodable is
// re-encoded as JPEG. Returns the final bytes and their MIME type.
func NormalizeImage(data []byte, mimeType string) ([]byte, string, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	if (mimeType == "image/jpeg" || mimeType == "image/png") && !isHEICData(data) {
		return data, mimeType, nil
	}

	var img image.Image
	var err error
	if isHEICData(data) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
