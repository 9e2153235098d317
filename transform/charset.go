package transform

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}

	charsetPrefix = []byte(`@charset "`)
)

// decodeSource converts style sheet bytes to UTF-8 text. The encoding comes
// from a byte order mark, then from a leading @charset rule, otherwise the
// data is taken as UTF-8. Returns the name of the encoding used.
func decodeSource(data []byte) (string, string, error) {
	var (
		enc  encoding.Encoding
		name string
	)
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), "utf-8", nil
	case bytes.HasPrefix(data, bomUTF16BE):
		enc, name = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), "utf-16be"
	case bytes.HasPrefix(data, bomUTF16LE):
		enc, name = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), "utf-16le"
	default:
		label, ok := charsetLabel(data)
		if !ok {
			return string(data), "utf-8", nil
		}
		if enc, name = charset.Lookup(label); enc == nil {
			return "", "", fmt.Errorf("unknown @charset %q", label)
		}
		// ASCII compatible declaration cannot announce UTF-16, the file was
		// readable as ASCII so it is really UTF-8
		if name == "utf-8" || name == "utf-16be" || name == "utf-16le" {
			return string(data), "utf-8", nil
		}
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("unable to decode %s source: %w", name, err)
	}
	return string(out), name, nil
}

// charsetLabel extracts the label of `@charset "label";` at the very start of
// data, the only form which counts as encoding declaration.
func charsetLabel(data []byte) (string, bool) {
	if !bytes.HasPrefix(data, charsetPrefix) {
		return "", false
	}
	rest := data[len(charsetPrefix):]
	end := bytes.Index(rest, []byte(`";`))
	if end <= 0 || end > 64 {
		return "", false
	}
	label := rest[:end]
	for _, c := range label {
		if c < 0x21 || c > 0x7E {
			return "", false
		}
	}
	return string(label), true
}

// validUTF8 reports whether decoded text is usable as is.
func validUTF8(text string) bool {
	return utf8.ValidString(text)
}
