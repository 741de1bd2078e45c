package server

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
)

// InjectScript inserts snippet right before the last </body> tag of doc. A
// document without one gets the snippet appended. The rest of doc is left
// byte-for-byte intact.
func InjectScript(doc []byte, snippet string) []byte {
	at := closingBodyOffset(doc)
	if at < 0 {
		at = len(doc)
	}

	out := make([]byte, 0, len(doc)+len(snippet))
	out = append(out, doc[:at]...)
	out = append(out, snippet...)
	out = append(out, doc[at:]...)
	return out
}

func closingBodyOffset(doc []byte) int {
	z := html.NewTokenizer(bytes.NewReader(doc))
	found := -1
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return -1
			}
			return found
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == "body" {
				found = offset
			}
		}
		offset += raw
	}
}
