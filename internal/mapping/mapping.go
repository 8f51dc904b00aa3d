// Package mapping implements PathMapping: the client-side configuration
// that translates a server-reported absolute remote path into a local
// destination, by longest-matching-prefix (counted in path components,
// not string length).
package mapping

import (
	"fmt"
	"strings"
)

// PathMapping pairs a remote absolute-path prefix with the local
// absolute-path prefix it re-roots under.
type PathMapping struct {
	RemotePrefix string
	LocalPrefix  string
}

// Set implements flag.Value, parsing "remote:local" for the repeatable
// -p/--path-mapping client flag.
type FlagList []PathMapping

func (f *FlagList) String() string {
	if f == nil {
		return ""
	}
	parts := make([]string, len(*f))
	for i, m := range *f {
		parts[i] = m.RemotePrefix + ":" + m.LocalPrefix
	}
	return strings.Join(parts, ",")
}

func (f *FlagList) Set(value string) error {
	idx := strings.Index(value, ":")
	if idx < 0 {
		return fmt.Errorf("path mapping %q must be of the form remote:local", value)
	}
	remote, local := value[:idx], value[idx+1:]
	if !strings.HasPrefix(remote, "/") || !strings.HasPrefix(local, "/") {
		return fmt.Errorf("path mapping %q: both remote and local must be absolute", value)
	}
	*f = append(*f, PathMapping{RemotePrefix: remote, LocalPrefix: local})
	return nil
}

// components splits an absolute path into its non-empty segments.
func components(path string) []string {
	var out []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Resolve finds the mapping whose RemotePrefix is an ancestor of
// remotePath with the greatest number of path components, and returns the
// corresponding local destination. ok is false if no mapping covers
// remotePath.
func Resolve(mappings []PathMapping, remotePath string) (localPath string, ok bool) {
	var best *PathMapping
	bestDepth := -1

	for i := range mappings {
		m := &mappings[i]
		if !isAncestor(m.RemotePrefix, remotePath) {
			continue
		}
		depth := len(components(m.RemotePrefix))
		if depth > bestDepth {
			bestDepth = depth
			best = m
		}
	}

	if best == nil {
		return "", false
	}

	relative := strings.TrimPrefix(remotePath, strings.TrimSuffix(best.RemotePrefix, "/"))
	relative = strings.TrimPrefix(relative, "/")
	return joinPath(best.LocalPrefix, relative), true
}

// isAncestor reports whether prefix is prefix of path on a path-component
// boundary (so "/a/b" is not considered an ancestor of "/a/bc").
func isAncestor(prefix, path string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

func joinPath(prefix, relative string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if relative == "" {
		return prefix
	}
	return prefix + "/" + relative
}
