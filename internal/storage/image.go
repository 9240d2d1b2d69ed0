package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// MaxImageEdge bounds the longest side of stored post media.
	MaxImageEdge = 2048
	WebPQuality  = 80
)

// ErrUnsupportedImage is returned for payloads that are not a decodable
// JPEG, PNG, GIF or WebP image.
var ErrUnsupportedImage = errors.New("unsupported image")

// PreparedImage is a normalised image ready for upload.
type PreparedImage struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// PrepareImage decodes raw, scales it to fit MaxImageEdge and re-encodes it
// as WebP. Re-encoding drops EXIF and other metadata.
func PrepareImage(raw []byte) (*PreparedImage, error) {
	switch http.DetectContentType(raw) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		return nil, ErrUnsupportedImage
	}

	decoded, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	scaled := resizeToFit(decoded, MaxImageEdge)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, scaled, &webp.Options{Quality: WebPQuality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}

	b := scaled.Bounds()
	return &PreparedImage{
		Data:        buf.Bytes(),
		ContentType: "image/webp",
		Ext:         "webp",
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

func resizeToFit(src image.Image, maxEdge int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxEdge && h <= maxEdge) {
		return src
	}

	scale := float64(maxEdge) / float64(w)
	if s := float64(maxEdge) / float64(h); s < scale {
		scale = s
	}
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}
