package scope

import (
	"regexp"
	"strings"

	"github.com/solumhq/casedesk/pkg/serrors"
)

// Path is a materialized hierarchical address: dot-separated segments where
// every ancestor of a node is a strict prefix of the node's path. The
// organization tree is encoded this way so containment checks never need
// recursive joins.
type Path string

// Global is the unrestricted scope marker. An actor holding it passes every
// containment check.
const Global Path = "*"

const separator = "."

var segmentRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var ErrInvalidPath = serrors.NewError("SCOPE_INVALID_PATH", "malformed scope path", "")

// Parse validates and normalizes a raw scope path. The global marker is
// accepted as-is.
func Parse(raw string) (Path, error) {
	raw = strings.TrimSpace(raw)
	if raw == string(Global) {
		return Global, nil
	}
	if raw == "" {
		return "", ErrInvalidPath.WithTemplateData(map[string]string{"path": raw})
	}
	for _, seg := range strings.Split(raw, separator) {
		if !segmentRe.MatchString(seg) {
			return "", ErrInvalidPath.WithTemplateData(map[string]string{"path": raw})
		}
	}
	return Path(raw), nil
}

// MustParse is for constants and tests.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) IsGlobal() bool {
	return p == Global
}

func (p Path) String() string {
	return string(p)
}

// Depth is the number of segments; derived, never stored.
func (p Path) Depth() int {
	if p == "" || p.IsGlobal() {
		return 0
	}
	return strings.Count(string(p), separator) + 1
}

// Parent returns the path one level shallower, or "" for a root.
func (p Path) Parent() Path {
	idx := strings.LastIndex(string(p), separator)
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// Child appends a segment.
func (p Path) Child(segment string) Path {
	if p == "" {
		return Path(segment)
	}
	return Path(string(p) + separator + segment)
}

// IsAncestorOf reports whether p is a strict ancestor of other.
func (p Path) IsAncestorOf(other Path) bool {
	if p.IsGlobal() || other.IsGlobal() {
		return false
	}
	return len(other) > len(p) && strings.HasPrefix(string(other), string(p)+separator)
}

// Covers reports whether p is other itself or one of its ancestors. The
// global marker covers everything.
func (p Path) Covers(other Path) bool {
	if p.IsGlobal() {
		return true
	}
	return p == other || p.IsAncestorOf(other)
}

// Contains reports whether target is covered by at least one actor scope.
// This is the delegation containment primitive: true when target equals an
// actor scope, is a descendant of one, or the actor holds the global marker.
func Contains(target Path, actorScopes []Path) bool {
	for _, s := range actorScopes {
		if s.Covers(target) {
			return true
		}
	}
	return false
}
