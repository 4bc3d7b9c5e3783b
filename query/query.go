// Package query implements the application/x-www-form-urlencoded codec used
// for URI query components and form bodies.
//
// Decoding treats '+' as a space before percent-decoding. A '%' that is not
// followed by two hex digits is dropped and the bytes after it are kept as
// they are, so "100%" decodes to "100" and "a%zzb" to "azzb".
package query

import (
	"errors"
	"fmt"
	"strings"

	"reqlens/params"

	"golang.org/x/text/encoding/htmlindex"
)

const upperhex = "0123456789ABCDEF"

var ErrCharset = errors.New("unsupported charset")

// Parse splits raw into ordered, decoded parameters. A leading '?' and empty
// tokens are ignored; a token without '=' is a keyword with an empty value.
func Parse(raw string) *params.Params {
	p := params.New()
	raw = strings.TrimPrefix(raw, "?")
	for token := range strings.SplitSeq(raw, "&") {
		if token == "" {
			continue
		}
		key, value, _ := strings.Cut(token, "=")
		p.Add(Unescape(key), Unescape(value))
	}
	return p
}

// ParseForm parses a urlencoded body. Decoded bytes are transcoded to UTF-8
// when charset names another encoding.
func ParseForm(body []byte, charset string) (*params.Params, error) {
	p := Parse(string(body))
	if isUTF8(charset) {
		return p, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrCharset, charset, err)
	}

	out := params.New()
	for key, value := range p.All() {
		k, err := enc.NewDecoder().String(key)
		if err != nil {
			return nil, fmt.Errorf("decode %s key: %w", charset, err)
		}
		v, err := enc.NewDecoder().String(value)
		if err != nil {
			return nil, fmt.Errorf("decode %s value: %w", charset, err)
		}
		out.Add(k, v)
	}
	return out, nil
}

func isUTF8(charset string) bool {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8", "us-ascii":
		return true
	}
	return false
}

func Unescape(s string) string {
	if strings.IndexByte(s, '%') == -1 && strings.IndexByte(s, '+') == -1 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 < len(s) && ishex(s[i+1]) && ishex(s[i+2]) {
				b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
				i += 2
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func Escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	buf := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			buf = append(buf, '%', upperhex[c>>4], upperhex[c&15])
			continue
		}
		buf = append(buf, c)
	}
	return string(buf)
}

// Encode always emits key=value pairs joined by '&'.
func Encode(p *params.Params) string {
	var b strings.Builder
	for key, value := range p.All() {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(key))
		b.WriteByte('=')
		b.WriteString(Escape(value))
	}
	return b.String()
}

// EncodeKeywords is Encode except that pairs with an empty value are written
// as a bare key.
func EncodeKeywords(p *params.Params) string {
	var b strings.Builder
	for key, value := range p.All() {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(key))
		if value != "" {
			b.WriteByte('=')
			b.WriteString(Escape(value))
		}
	}
	return b.String()
}

func shouldEscape(c byte) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '-', '.', '_', '~',
		'!', '$', '\'', '(', ')', '*', ',', ';', ':', '@', '/', '?':
		return false
	}
	return true
}

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
