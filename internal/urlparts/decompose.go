package urlparts

import (
	"net/url"
	"strings"
)

// Parts holds the decomposed components of a label.
type Parts struct {
	Scheme string

	// Host is nil when the label has no authority host.
	Host *string

	Path string
}

// Decompose splits a label into scheme, hostname and path.
// The path is taken from the label as written, without escaping or
// unescaping. Query strings and fragments are discarded.
func Decompose(label string) Parts {
	u, err := url.Parse(label)
	if err != nil {
		return lenientSplit(label)
	}

	rest := label
	if u.Scheme != "" {
		rest = rest[len(u.Scheme)+1:]
	}
	_, _, path := splitHierarchy(rest)

	return Parts{
		Scheme: u.Scheme,
		Host:   hostOrNil(u.Hostname()),
		Path:   path,
	}
}

func hostOrNil(host string) *string {
	if host == "" {
		return nil
	}
	host = strings.ToLower(host)
	return &host
}

// lenientSplit handles labels net/url rejects (invalid escapes, a colon
// in the first path segment, malformed IPv6 literals).
func lenientSplit(label string) Parts {
	var p Parts
	rest := label

	if i := strings.IndexByte(rest, ':'); i > 0 && isScheme(rest[:i]) {
		p.Scheme = strings.ToLower(rest[:i])
		rest = rest[i+1:]
	}

	authority, ok, path := splitHierarchy(rest)
	if ok {
		p.Host = hostOrNil(hostname(authority))
	}
	p.Path = path
	return p
}

// splitHierarchy cuts the text after the scheme into an optional
// "//authority" and the path, dropping any query or fragment.
func splitHierarchy(rest string) (authority string, hasAuthority bool, path string) {
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	if !strings.HasPrefix(rest, "//") {
		return "", false, rest
	}

	rest = rest[2:]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i], true, rest[i:]
	}
	return rest, true, ""
}

func isScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}

// hostname strips userinfo, port and IPv6 brackets from an authority.
func hostname(authority string) string {
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		authority = authority[i+1:]
	}

	if strings.HasPrefix(authority, "[") {
		if i := strings.IndexByte(authority, ']'); i >= 0 {
			return authority[1:i]
		}
		return strings.TrimPrefix(authority, "[")
	}

	if i := strings.IndexByte(authority, ':'); i >= 0 {
		return authority[:i]
	}
	return authority
}
