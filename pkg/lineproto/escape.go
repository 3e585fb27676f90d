package lineproto

import "strings"

const spaceMarker = "%20"

// Escape encodes a value so it survives a single protocol line.
func Escape(v string) string {
	if !strings.ContainsAny(v, "\\;\n ") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v) + 8)
	for i := 0; i < len(v); i++ {
		switch c := v[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case ';':
			b.WriteString(`\;`)
		case '\n':
			b.WriteString(`\n`)
		case ' ':
			b.WriteString(spaceMarker)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Unescape reverses Escape in a single left-to-right pass.
// Unknown backslash sequences are kept verbatim.
func Unescape(v string) string {
	if !strings.ContainsAny(v, `\%`) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == '\\' && i+1 < len(v):
			switch v[i+1] {
			case '\\':
				b.WriteByte('\\')
			case ';':
				b.WriteByte(';')
			case 'n':
				b.WriteByte('\n')
			default:
				b.WriteByte('\\')
				b.WriteByte(v[i+1])
			}
			i++
		case c == '%' && strings.HasPrefix(v[i:], spaceMarker):
			b.WriteByte(' ')
			i += len(spaceMarker) - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// splitFields splits on ';' that is not preceded by an escaping backslash.
func splitFields(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case ';':
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
