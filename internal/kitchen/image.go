package kitchen

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
)

// maxWidth is the widest image sent to a vision model.
const maxWidth = 800

// prepareImage decodes the upload, downscales it to maxWidth and re-encodes
// it in its original format. It returns the encoded bytes and the format
// name reported by the decoder.
func prepareImage(imageData []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	if img.Bounds().Dx() > maxWidth {
		img = resize.Resize(maxWidth, 0, img, resize.Lanczos3)
	}

	var out bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&out, img, nil)
	case "png":
		err = png.Encode(&out, img)
	default:
		return nil, "", fmt.Errorf("unsupported image format: %s", format)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return out.Bytes(), format, nil
}

// saveImage writes the prepared image to dir under its hash.
func saveImage(dir string, imageData []byte, imageHash string, extension string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	imagePath := filepath.Join(dir, imageHash+extension)
	if err := os.WriteFile(imagePath, imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	return imagePath, nil
}
