package scanner

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/grovetools/extcore/errors"
	"github.com/moby/patternmatcher"
)

// DefaultPatterns select the common packaged-module formats.
var DefaultPatterns = []string{"*.zip", "*.jar", "*.war", "*.tar.gz", "*.tgz", "*.so", "*.wasm"}

// Filter decides whether a walked entry is a module. rel is the slash
// separated path relative to the scanned root. On a match it returns the
// pattern that selected the entry.
type Filter interface {
	Match(rel string, d fs.DirEntry) (pattern string, ok bool)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(rel string, d fs.DirEntry) (string, bool)

// Match calls f.
func (f FilterFunc) Match(rel string, d fs.DirEntry) (string, bool) {
	return f(rel, d)
}

type globPattern struct {
	pm   *patternmatcher.PatternMatcher
	text string
	// byPath patterns contain a separator and match the relative path;
	// the others match the entry name.
	byPath bool
}

func (p globPattern) matches(rel string) bool {
	subject := rel
	if !p.byPath {
		subject = path.Base(rel)
	}
	ok, err := p.pm.MatchesOrParentMatches(subject)
	return err == nil && ok
}

// globFilter matches entries against compiled glob patterns. Patterns
// prefixed with ! exclude.
type globFilter struct {
	includes []globPattern
	excludes []globPattern
	all      bool
}

// NewOrFilter accepts entries matching any of patterns. Without patterns it
// uses DefaultPatterns.
func NewOrFilter(patterns ...string) (Filter, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return newGlobFilter(patterns, false)
}

// NewAndFilter accepts entries matching every one of patterns.
func NewAndFilter(patterns ...string) (Filter, error) {
	if len(patterns) == 0 {
		return nil, errors.ConfigInvalid("an and-filter needs at least one pattern")
	}
	return newGlobFilter(patterns, true)
}

// NewFilter builds an or-filter or an and-filter depending on match.
func NewFilter(match string, patterns ...string) (Filter, error) {
	switch match {
	case "", "or":
		return NewOrFilter(patterns...)
	case "and":
		return NewAndFilter(patterns...)
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown match mode '%s'", match))
	}
}

func newGlobFilter(patterns []string, all bool) (*globFilter, error) {
	f := &globFilter{all: all}
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		exclude := strings.HasPrefix(raw, "!")
		body := strings.TrimPrefix(raw, "!")

		pm, err := patternmatcher.New([]string{body})
		if err == nil && len(pm.Patterns()) == 0 {
			err = fmt.Errorf("empty pattern")
		}
		if err == nil {
			// Patterns compile on first use, which is not safe for
			// concurrent walkers; compile now so syntax errors surface here.
			_, err = pm.MatchesOrParentMatches("probe")
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid module pattern").
				WithDetail("pattern", raw)
		}

		text := pm.Patterns()[0].String()
		gp := globPattern{pm: pm, text: text, byPath: strings.Contains(text, "/")}
		if exclude {
			f.excludes = append(f.excludes, gp)
		} else {
			f.includes = append(f.includes, gp)
		}
	}
	if len(f.includes) == 0 && len(f.excludes) == 0 {
		return nil, errors.ConfigInvalid("no module patterns given")
	}
	return f, nil
}

func (f *globFilter) Match(rel string, d fs.DirEntry) (string, bool) {
	for _, p := range f.excludes {
		if p.matches(rel) {
			return "", false
		}
	}

	if len(f.includes) == 0 {
		// Only exclusions configured: every remaining file is a module,
		// directories are searched rather than taken as exploded modules.
		if d != nil && d.IsDir() {
			return "", false
		}
		return "*", true
	}

	if f.all {
		for _, p := range f.includes {
			if !p.matches(rel) {
				return "", false
			}
		}
		return f.includes[0].text, true
	}

	for _, p := range f.includes {
		if p.matches(rel) {
			return p.text, true
		}
	}
	return "", false
}
