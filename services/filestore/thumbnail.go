package filestore

import (
	"bytes"
	"image"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

const thumbnailQuality = 80

// IsImage reports whether a thumbnail can be made for `mimeType`.
func IsImage(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

// Thumbnail decodes the image in `r` and returns a WebP thumbnail fitting in a size x size square.
func Thumbnail(r io.Reader, mimeType string, size int) ([]byte, error) {
	var (
		img image.Image
		err error
	)
	if strings.HasSuffix(mimeType, "webp") {
		img, err = webp.Decode(r)
	} else {
		img, err = imaging.Decode(r, imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}

	thumb := imaging.Fit(img, size, size, imaging.Lanczos)
	buf := new(bytes.Buffer)
	if err = webp.Encode(buf, thumb, &webp.Options{Lossless: false, Quality: thumbnailQuality}); err != nil {
		return nil, errors.Wrap(err, "encoding thumbnail")
	}
	return buf.Bytes(), nil
}
