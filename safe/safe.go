// Package safe guards the places where user input reaches the filesystem
// or the network: artifact paths, run and scenario identifiers, and
// webhook URLs.
package safe

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
)

// MaxIdentifier bounds identifiers accepted by Identifier.
const MaxIdentifier = 128

// ErrPathTraversal is returned when a path escapes its base directory.
var ErrPathTraversal = errors.New("safe: path escapes base directory")

// ErrUnsafeScheme is returned for URLs that are not http or https.
var ErrUnsafeScheme = errors.New("safe: only http and https URLs are allowed")

// Path joins rel under base and fails if the result leaves base.
func Path(base, rel string) (string, error) {
	if strings.Contains(rel, "..") {
		return "", ErrPathTraversal
	}
	root := filepath.Clean(base)
	joined := filepath.Join(root, filepath.Clean("/"+rel))
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return joined, nil
}

// Identifier accepts names made of letters, digits, '_', '-' and '.'.
// Scenario names and run IDs both go through it before they reach a URL
// path or a query.
func Identifier(s string) error {
	if s == "" {
		return fmt.Errorf("safe: empty identifier")
	}
	if len(s) > MaxIdentifier {
		return fmt.Errorf("safe: identifier longer than %d", MaxIdentifier)
	}
	for _, r := range s {
		if !identRune(r) {
			return fmt.Errorf("safe: invalid character %q in %q", r, s)
		}
	}
	return nil
}

func identRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

// HTTPURL checks that raw is an absolute http(s) URL with a host.
// Loopback targets are allowed: local collectors are the common case.
func HTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("safe: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return fmt.Errorf("safe: URL %q has no host", raw)
	}
	return nil
}

// LimitedReadAll reads at most max bytes of r and reports whether more
// was available.
func LimitedReadAll(r io.Reader, max int64) (data []byte, truncated bool, err error) {
	data, err = io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > max {
		return data[:max], true, nil
	}
	return data, false, nil
}
