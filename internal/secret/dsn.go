// Package secret keeps connection descriptors out of logs and normalizes the
// credentials they carry.
package secret

import (
	"net/url"
	"regexp"
	"strings"
)

const mask = "***"

var keywordPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// Redact masks the password of a URL, keyword/value or MySQL style DSN.
func Redact(dsn string) string {
	if dsn == "" {
		return ""
	}
	scheme, rest, hasScheme := strings.Cut(dsn, "://")
	if !hasScheme {
		if keywordPassword.MatchString(dsn) {
			return keywordPassword.ReplaceAllString(dsn, "${1}"+mask)
		}
		rest = dsn
	}
	at := userinfoEnd(rest)
	if at < 0 {
		return dsn
	}
	user, _, hasPass := strings.Cut(rest[:at], ":")
	if !hasPass {
		return dsn
	}
	out := user + ":" + mask + "@" + rest[at+1:]
	if hasScheme {
		out = scheme + "://" + out
	}
	return out
}

// EncodePassword percent-encodes a raw password embedded in a URL DSN. A
// password that already contains '%' is assumed to be encoded.
func EncodePassword(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	at := userinfoEnd(rest)
	if at < 0 {
		return dsn
	}
	user, pass, ok := strings.Cut(rest[:at], ":")
	if !ok || pass == "" || strings.Contains(pass, "%") {
		return dsn
	}
	return scheme + "://" + url.UserPassword(user, pass).String() + "@" + rest[at+1:]
}

// userinfoEnd returns the index of the '@' that closes the userinfo in rest,
// the part of a DSN after "scheme://", or -1 when there is none. When rest
// parses as a URL only the authority is searched, so an '@' in a query value
// is left alone. Otherwise the password is assumed to hold raw reserved
// characters and the last '@' wins.
func userinfoEnd(rest string) int {
	u, err := url.Parse("postgres://" + rest)
	if err != nil || u.Fragment != "" || strings.HasSuffix(u.Host, ":") {
		return strings.LastIndex(rest, "@")
	}
	if u.User != nil {
		authority := rest
		if i := strings.IndexAny(authority, "/?#"); i >= 0 {
			authority = authority[:i]
		}
		return strings.LastIndex(authority, "@")
	}
	// An '@' in the path can only come from a raw password holding '/'.
	path, _, _ := strings.Cut(rest, "?")
	return strings.LastIndex(path, "@")
}

// StripPooler removes pgbouncer query parameters, keeping the rest in order.
func StripPooler(dsn string) string {
	base, query, ok := strings.Cut(dsn, "?")
	if !ok {
		return dsn
	}
	var kept []string
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if strings.EqualFold(key, "pgbouncer") {
			continue
		}
		kept = append(kept, part)
	}
	if len(kept) == 0 {
		return base
	}
	return base + "?" + strings.Join(kept, "&")
}

// IsPooler reports whether dsn points at a transaction pooler, either by host
// name, by the pgbouncer port or by a pgbouncer query parameter.
func IsPooler(dsn string) bool {
	u, err := url.Parse(EncodePassword(dsn))
	if err != nil {
		return false
	}
	return pooled(u)
}

func pooled(u *url.URL) bool {
	return strings.Contains(u.Hostname(), "pooler.") || u.Port() == "6543" || u.Query().Get("pgbouncer") != ""
}

// Inspect lists problems with a descriptor that commonly break migrations.
func Inspect(dsn string) []string {
	var issues []string
	if strings.TrimSpace(dsn) == "" {
		return []string{"connection string is empty"}
	}
	if strings.HasPrefix(dsn, "mysql://") {
		return issues
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		if keywordPassword.MatchString(dsn) || strings.Contains(dsn, "host=") {
			return issues
		}
		issues = append(issues, "scheme must be postgres:// or postgresql://")
		return issues
	}

	_, rest, _ := strings.Cut(dsn, "://")
	at := userinfoEnd(rest)
	if at < 0 {
		issues = append(issues, "no credentials in connection string")
	} else {
		_, pass, hasPass := strings.Cut(rest[:at], ":")
		switch {
		case !hasPass || pass == "":
			issues = append(issues, "password is missing")
		case !strings.Contains(pass, "%") && url.UserPassword("", pass).String() != ":"+pass:
			issues = append(issues, "password contains reserved characters and is not percent-encoded")
		}
	}

	u, err := url.Parse(EncodePassword(dsn))
	if err != nil {
		issues = append(issues, "connection string is not a valid URL")
		return issues
	}
	if u.Hostname() == "" {
		issues = append(issues, "host is missing")
	}
	if pooled(u) {
		issues = append(issues, "descriptor points at a transaction pooler; use a direct connection for migrations")
	}
	if strings.Trim(u.Path, "/") == "" {
		issues = append(issues, "database name is missing")
	}
	return issues
}
