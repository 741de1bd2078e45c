package transform

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/conneroisu/weft/internal/errors"
	"github.com/conneroisu/weft/internal/pipeline"
)

// ImageOptions configures OptimizeImage.
type ImageOptions struct {
	JPEGQuality int
}

// OptimizeImage re-encodes JPEG and PNG files and minifies SVG. A re-encoded
// raster image replaces the original only when it is smaller. Other formats
// pass through untouched.
func OptimizeImage(opts ImageOptions) pipeline.Transform {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 85
	}

	return pipeline.EachFile("image", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		var (
			out []byte
			err error
		)

		switch strings.ToLower(f.Ext()) {
		case ".jpg", ".jpeg":
			out, err = recompress(f.Contents, jpeg.Decode, func(buf *bytes.Buffer, img image.Image) error {
				return jpeg.Encode(buf, img, &jpeg.Options{Quality: opts.JPEGQuality})
			})
		case ".png":
			enc := &png.Encoder{CompressionLevel: png.BestCompression}
			out, err = recompress(f.Contents, png.Decode, func(buf *bytes.Buffer, img image.Image) error {
				return enc.Encode(buf, img)
			})
		case ".svg":
			out, err = minifySVG(f.Contents)
		default:
			return f, nil
		}

		if err != nil {
			return nil, errors.NewTransformError(errors.ErrCodeImage, "cannot optimize image", err).
				WithLocation(f.Origin(), 0, 0)
		}

		res := *f
		res.Contents = out
		return &res, nil
	})
}

func recompress(
	data []byte,
	decode func(r io.Reader) (image.Image, error),
	encode func(buf *bytes.Buffer, img image.Image) error,
) ([]byte, error) {
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		return nil, err
	}
	if buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), nil
}
