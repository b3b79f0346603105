package media

import (
	"fmt"
	"strings"
)

// Filter restricts which kinds are displayed. The zero value allows all kinds.
type Filter struct {
	only Kind
	set  bool
}

// AllKinds allows every kind.
func AllKinds() Filter { return Filter{} }

// Only restricts display to a single kind.
func Only(k Kind) Filter { return Filter{only: k, set: true} }

// ParseFilter accepts "all", "photo" or "video".
func ParseFilter(s string) (Filter, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == "all" {
		return AllKinds(), nil
	}
	k, err := ParseKind(v)
	if err != nil || k == KindError {
		return Filter{}, fmt.Errorf("invalid media type filter %q (want all, photo or video)", s)
	}
	return Only(k), nil
}

// Allows reports whether the item should be shown. Error placeholders are
// never filtered out.
func (f Filter) Allows(it Item) bool {
	if !f.set || it.Kind == KindError {
		return true
	}
	return it.Kind == f.only
}

// Kind returns the single allowed kind, or false for an unrestricted filter.
func (f Filter) Kind() (Kind, bool) { return f.only, f.set }

// IsAll reports whether the filter is unrestricted.
func (f Filter) IsAll() bool { return !f.set }

func (f Filter) String() string {
	if !f.set {
		return "all"
	}
	return f.only.String()
}
