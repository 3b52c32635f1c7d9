package mailcap

import "strings"

// filenameSafeChars are the bytes allowed through SanitizeFilename; anything
// else below 0x80 becomes '_'. Multibyte sequences pass through untouched.
const filenameSafeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+@{}._-:%/"

// ExpandCommand substitutes the RFC 1524 expandos in a command template:
//
//	%s        the file containing the body (marks the command file-based)
//	%t        the content type, like text/plain
//	%{param}  a Content-Type parameter value
//	\x        the literal character x
//
// Every substitution is shell-quoted. The returned bool reports whether the
// command still needs the body piped on stdin, i.e. no %s was resolved.
func (e *Engine) ExpandCommand(body *Body, filename, mimeType, command string) (string, bool) {
	needsPipe := true
	sanitize := e.Sanitize()

	var buf strings.Builder
	for i := 0; i < len(command); i++ {
		switch command[i] {
		case '\\':
			i++
			if i < len(command) {
				buf.WriteByte(command[i])
			}
		case '%':
			i++
			if i >= len(command) {
				break
			}
			switch {
			case command[i] == '{':
				j := strings.IndexByte(command[i:], '}')
				var name string
				if j < 0 {
					name = command[i+1:]
					i = len(command) - 1
				} else {
					name = command[i+1 : i+j]
					i += j
				}
				value := body.param(name)
				if sanitize {
					value = SanitizeFilename(value, false)
				}
				buf.WriteString(QuoteFilename(value))
			case command[i] == 's' && filename != "":
				buf.WriteString(QuoteFilename(filename))
				needsPipe = false
			case command[i] == 't':
				t := mimeType
				if sanitize {
					t = SanitizeFilename(t, false)
				}
				buf.WriteString(QuoteFilename(t))
			}
		default:
			buf.WriteByte(command[i])
		}
	}
	return buf.String(), needsPipe
}

// QuoteFilename wraps a string in single quotes so the shell passes it as one
// word. Embedded quotes and backticks are re-escaped outside the quoted
// region.
func QuoteFilename(filename string) string {
	var buf strings.Builder
	buf.WriteByte('\'')
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if c == '\'' || c == '`' {
			buf.WriteByte('\'')
			buf.WriteByte('\\')
			buf.WriteByte(c)
			buf.WriteByte('\'')
		} else {
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('\'')
	return buf.String()
}

// SanitizeFilename replaces shell meta-characters with '_'. When slash is
// true path separators are replaced as well, collapsing the value to a plain
// basename.
func SanitizeFilename(path string, slash bool) string {
	var buf strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if (slash && c == '/') || (c < 0x80 && !strings.ContainsRune(filenameSafeChars, rune(c))) {
			buf.WriteByte('_')
		} else {
			buf.WriteByte(c)
		}
	}
	return buf.String()
}
