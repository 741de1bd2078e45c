package transform

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/conneroisu/weft/internal/errors"
	"github.com/conneroisu/weft/internal/pipeline"
)

const svgMediaType = "image/svg+xml"

var svgMinifier = func() *minify.M {
	m := minify.New()
	m.AddFunc(svgMediaType, svg.Minify)
	return m
}()

func minifySVG(data []byte) ([]byte, error) {
	return svgMinifier.Bytes(svgMediaType, data)
}

// MinifySVG minifies SVG documents. Element ids survive so sprite fragments
// and internal references keep working.
func MinifySVG() pipeline.Transform {
	return pipeline.EachFile("svgmin", func(_ context.Context, f *pipeline.File) (*pipeline.File, error) {
		out, err := minifySVG(f.Contents)
		if err != nil {
			return nil, errors.NewTransformError(errors.ErrCodeSprite, "cannot minify svg", err).
				WithLocation(f.Origin(), 0, 0)
		}
		res := *f
		res.Contents = out
		return &res, nil
	})
}

// Replace substitutes every occurrence of from with to in each file.
func Replace(from, to string) pipeline.Transform {
	return pipeline.EachFile("replace", func(_ context.Context, f *pipeline.File) (*pipeline.File, error) {
		res := *f
		res.Contents = bytes.ReplaceAll(f.Contents, []byte(from), []byte(to))
		return &res, nil
	})
}

type svgDocument struct {
	XMLName xml.Name `xml:"svg"`
	ViewBox string   `xml:"viewBox,attr"`
	Width   string   `xml:"width,attr"`
	Height  string   `xml:"height,attr"`
	Inner   []byte   `xml:",innerxml"`
}

// Sprite merges SVG files into one stack sprite called name. Every input
// becomes a nested <svg> whose id is the input's base name; only the fragment
// named in the URL (sprite.svg#icon) is displayed.
func Sprite(name string) pipeline.Transform {
	return pipeline.TransformFunc("sprite", func(_ context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		if len(files) == 0 {
			return nil, nil
		}

		var buf bytes.Buffer
		buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">`)
		buf.WriteString(`<style>:root>svg{display:none}:root>svg:target{display:inline}</style>`)

		ids := make(map[string]string, len(files))
		for _, f := range files {
			id := spriteID(f.Path)
			if prev, ok := ids[id]; ok {
				return nil, errors.NewTransformError(errors.ErrCodeSprite,
					fmt.Sprintf("sprite id %q is used by %s and %s", id, prev, f.Origin()), nil).
					WithLocation(f.Origin(), 0, 0)
			}
			ids[id] = f.Origin()

			var doc svgDocument
			if err := xml.Unmarshal(f.Contents, &doc); err != nil {
				return nil, errors.NewTransformError(errors.ErrCodeSprite, "invalid svg", err).
					WithLocation(f.Origin(), 0, 0)
			}

			buf.WriteString(`<svg id="`)
			writeAttr(&buf, id)
			buf.WriteString(`"`)
			if vb := viewBox(doc); vb != "" {
				buf.WriteString(` viewBox="`)
				writeAttr(&buf, vb)
				buf.WriteString(`"`)
			}
			buf.WriteString(`>`)
			buf.Write(bytes.TrimSpace(doc.Inner))
			buf.WriteString(`</svg>`)
		}
		buf.WriteString(`</svg>`)

		return []*pipeline.File{{Path: name, Contents: buf.Bytes()}}, nil
	})
}

func spriteID(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func viewBox(doc svgDocument) string {
	if doc.ViewBox != "" {
		return doc.ViewBox
	}
	if doc.Width != "" && doc.Height != "" {
		w := strings.TrimSuffix(doc.Width, "px")
		h := strings.TrimSuffix(doc.Height, "px")
		return "0 0 " + w + " " + h
	}
	return ""
}

func writeAttr(buf *bytes.Buffer, s string) {
	_ = xml.EscapeText(buf, []byte(s))
}
