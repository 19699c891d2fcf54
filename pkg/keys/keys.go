package keys

import (
	"strings"

	"github.com/google/uuid"
)

// forbidden are the characters the storage backend rejects in path segments.
const forbidden = ".#$[]/\\"

// Sanitize turns an arbitrary string into a safe storage key segment by
// replacing forbidden characters with '_' and trimming surrounding
// whitespace. Total and idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(forbidden, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// ForTask returns the canonical storage key for a task: the task ID when
// present, else the task name, sanitized. All new vote writes use this key.
func ForTask(id, name string) string {
	base := id
	if base == "" {
		base = name
	}
	if base == "" {
		base = "unknown_task"
	}
	return Sanitize(base)
}

// CandidatesForTask returns every historically valid storage key for a
// task, in fixed priority order: the canonical id-based key, then the
// sanitized name, then the raw name. Earlier key schemes wrote votes under
// the name-derived forms; reads must try all of them until those records
// are migrated to the canonical key. Writes never use the fallbacks.
func CandidatesForTask(id, name string) []string {
	var out []string
	seen := make(map[string]struct{}, 3)
	add := func(k string) {
		if k == "" {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	add(ForTask(id, name))
	add(Sanitize(name))
	add(name)
	return out
}

// UserID derives a stable participant identifier from a display name using
// a namespaced UUIDv5. The same name always maps to the same ID within a
// deployment; no stronger authentication is assumed.
func UserID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name)).String()
}

// VoteID returns a fresh opaque identifier for a stored vote.
func VoteID() string {
	return uuid.NewString()
}
