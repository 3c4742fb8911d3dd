// Package policy derives storage names for uploaded files.
//
// The extension denylist is a policy boundary for upload directories that
// may be web-served. It matches names, not content, and is not a security
// guarantee.
package policy

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the sortable prefix layout, rendered as YYYYMMDD-HHMMSS.
const TimestampLayout = "20060102-150405"

// DefaultReplacement is the extension substituted for denylisted ones.
const DefaultReplacement = ".txt"

// fallbackName is used when an upload name has no usable base.
const fallbackName = "upload"

// DefaultDenylist returns the extensions (without dot) rewritten by default.
// Matching is case-sensitive.
func DefaultDenylist() []string {
	return []string{"php", "php3", "php4", "php5", "phtml", "htm", "html", "htmlp", "html5", "js"}
}

// ErrInvalidReplacement is returned when the replacement extension is malformed.
var ErrInvalidReplacement = errors.New("invalid replacement extension")

// NameConfig configures a NamePolicy.
type NameConfig struct {
	// Denylist lists extensions without the leading dot.
	// Nil selects DefaultDenylist; an empty non-nil slice disables rewriting.
	Denylist []string

	// Replacement is the extension, with dot, that replaces a denylisted one.
	// Default is DefaultReplacement.
	Replacement string

	// Location is the time zone of the timestamp prefix. Default is UTC.
	Location *time.Location

	// Now supplies the clock. Default is time.Now.
	Now func() time.Time
}

// Stats counts names derived by a NamePolicy.
type Stats struct {
	// Derived is the number of names derived.
	Derived int64
	// Rewritten is the number of denylisted extensions replaced.
	Rewritten int64
	// Fallbacks is the number of names that had no usable base.
	Fallbacks int64
}

// NamePolicy turns client-supplied file names into storage names.
// It is safe for concurrent use.
type NamePolicy struct {
	denylist    map[string]struct{}
	replacement string
	loc         *time.Location
	now         func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewNamePolicy creates a name policy.
func NewNamePolicy(cfg NameConfig) (*NamePolicy, error) {
	if cfg.Denylist == nil {
		cfg.Denylist = DefaultDenylist()
	}
	if cfg.Replacement == "" {
		cfg.Replacement = DefaultReplacement
	}
	if !strings.HasPrefix(cfg.Replacement, ".") || len(cfg.Replacement) < 2 ||
		strings.ContainsAny(cfg.Replacement, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReplacement, cfg.Replacement)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	deny := make(map[string]struct{}, len(cfg.Denylist))
	for _, ext := range cfg.Denylist {
		deny[strings.TrimPrefix(ext, ".")] = struct{}{}
	}
	return &NamePolicy{
		denylist:    deny,
		replacement: cfg.Replacement,
		loc:         cfg.Location,
		now:         cfg.Now,
	}, nil
}

// DeriveStoredName returns "<YYYYMMDD-HHMMSS>-<base>" where base is the last
// path component of original with a denylisted extension replaced.
func (p *NamePolicy) DeriveStoredName(original string) string {
	return p.DeriveStoredNameAt(original, p.now())
}

// DeriveStoredNameAt is DeriveStoredName with an explicit timestamp.
func (p *NamePolicy) DeriveStoredNameAt(original string, at time.Time) string {
	base := BaseName(original)
	fallback := base == ""
	if fallback {
		base = fallbackName
	}

	rewritten := false
	if dot := strings.LastIndexByte(base, '.'); dot >= 0 {
		if _, denied := p.denylist[base[dot+1:]]; denied {
			base = base[:dot] + p.replacement
			rewritten = true
		}
	}

	p.mu.Lock()
	p.stats.Derived++
	if rewritten {
		p.stats.Rewritten++
	}
	if fallback {
		p.stats.Fallbacks++
	}
	p.mu.Unlock()

	return at.In(p.loc).Format(TimestampLayout) + "-" + base
}

// IsDenied reports whether ext (with or without the dot) is denylisted.
func (p *NamePolicy) IsDenied(ext string) bool {
	_, ok := p.denylist[strings.TrimPrefix(ext, ".")]
	return ok
}

// Stats returns a snapshot of the policy counters.
func (p *NamePolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// BaseName strips directory components (both / and \ separators, since
// browsers on Windows send full paths) and control characters from a
// client-supplied name. It returns "" when nothing usable remains.
func BaseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}
