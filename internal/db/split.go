package db

import "strings"

// splitStatements breaks a script on top-level semicolons. Quoted strings,
// quoted identifiers, dollar-quoted bodies and comments are kept intact.
func splitStatements(sqlText string) []string {
	var (
		out     []string
		current strings.Builder
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" && !onlyComments(stmt) {
			out = append(out, stmt)
		}
		current.Reset()
	}

	src := sqlText
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(src, i+1, c)
			current.WriteString(src[i:end])
			i = end - 1
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			current.WriteString(src[i : i+end])
			i += end - 1
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			stop := len(src)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			current.WriteString(src[i:stop])
			i = stop - 1
		case c == '$':
			tag, ok := dollarTag(src[i:])
			if !ok {
				current.WriteByte(c)
				continue
			}
			end := strings.Index(src[i+len(tag):], tag)
			stop := len(src)
			if end >= 0 {
				stop = i + len(tag) + end + len(tag)
			}
			current.WriteString(src[i:stop])
			i = stop - 1
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return out
}

// closingQuote returns the index just past the quote that closes the literal
// starting at from. Doubled quotes and backslash escapes are skipped.
func closingQuote(src string, from int, q byte) int {
	for j := from; j < len(src); j++ {
		switch src[j] {
		case '\\':
			if q != '`' {
				j++
			}
		case q:
			if j+1 < len(src) && src[j+1] == q {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(src)
}

// dollarTag recognizes $$ or $tag$ at the start of s.
func dollarTag(s string) (string, bool) {
	for j := 1; j < len(s); j++ {
		c := s[j]
		if c == '$' {
			return s[:j+1], true
		}
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || j > 1 && c >= '0' && c <= '9') {
			return "", false
		}
	}
	return "", false
}

func onlyComments(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
