package wims

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// normalizeBody converts a Latin-1 body to UTF-8. Bodies that are already valid
// UTF-8 are returned untouched.
func normalizeBody(buf []byte) []byte {
	if utf8.Valid(buf) {
		return buf
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(buf)
	if err != nil {
		return buf
	}
	return out
}

// legacyParam round-trips value through Latin-1 the way the server's older
// clients did: every rune Latin-1 can not hold (and every broken byte) becomes '?'.
func legacyParam(value string) string {
	latin := make([]byte, 0, len(value))
	for i := 0; i < len(value); {
		r, size := utf8.DecodeRuneInString(value[i:])
		i += size
		if r == utf8.RuneError && size <= 1 {
			latin = append(latin, '?')
			continue
		}
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			b = '?'
		}
		latin = append(latin, b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().String(string(latin))
	if err != nil {
		return strings.ToValidUTF8(value, "?")
	}
	return out
}
