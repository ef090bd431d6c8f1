// internal/query/matcher.go
package query

import (
	"fmt"
	"regexp"
	"strings"
)

type matcherKind int

const (
	matchString matcherKind = iota
	matchPattern
	matchFunc
)

// Matcher decides whether a candidate's text satisfies a query. Matching always
// runs in the test process against text serialized from the browser, so
// predicates never have to cross the boundary.
type Matcher struct {
	kind matcherKind
	text string
	re   *regexp.Regexp
	fn   func(string) bool
	desc string
}

// Exact matches the whole normalized text. With WithExact(false) it becomes a
// case-insensitive substring match.
func Exact(text string) Matcher {
	return Matcher{kind: matchString, text: text, desc: fmt.Sprintf("%q", text)}
}

// Pattern matches normalized text against re.
func Pattern(re *regexp.Regexp) Matcher {
	return Matcher{kind: matchPattern, re: re, desc: "/" + re.String() + "/"}
}

// Regexp compiles expr and matches with it. It panics if expr is invalid.
func Regexp(expr string) Matcher {
	return Pattern(regexp.MustCompile(expr))
}

// Func matches with an arbitrary predicate over the normalized text.
// desc is used in error messages.
func Func(desc string, fn func(text string) bool) Matcher {
	return Matcher{kind: matchFunc, fn: fn, desc: desc}
}

// String describes the matcher for error messages.
func (m Matcher) String() string { return m.desc }

func (m Matcher) matches(text string, o *options) bool {
	normalized := o.normalizer(text)
	switch m.kind {
	case matchPattern:
		return m.re != nil && m.re.MatchString(normalized)
	case matchFunc:
		return m.fn != nil && m.fn(normalized)
	default:
		if o.exact {
			return normalized == m.text
		}
		return strings.Contains(strings.ToLower(normalized), strings.ToLower(m.text))
	}
}

// DefaultNormalizer trims the text and collapses runs of whitespace into one space.
func DefaultNormalizer(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

const defaultIgnore = "script, style"

type options struct {
	exact      bool
	normalizer func(string) string
	selector   string
	ignore     string
	name       *Matcher
	hidden     bool
}

// Option refines a query.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		exact:      true,
		normalizer: DefaultNormalizer,
		ignore:     defaultIgnore,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithExact toggles exact string matching. Pattern and Func matchers ignore it.
func WithExact(exact bool) Option {
	return func(o *options) { o.exact = exact }
}

// WithNormalizer replaces the default whitespace normalizer.
func WithNormalizer(fn func(string) string) Option {
	return func(o *options) {
		if fn != nil {
			o.normalizer = fn
		}
	}
}

// WithSelector restricts text queries to elements matching the CSS selector.
func WithSelector(css string) Option {
	return func(o *options) { o.selector = css }
}

// WithIgnore sets the CSS selector of elements text queries skip.
// An empty selector ignores nothing.
func WithIgnore(css string) Option {
	return func(o *options) { o.ignore = css }
}

// WithName filters role queries by accessible name.
func WithName(m Matcher) Option {
	return func(o *options) { o.name = &m }
}

// WithHidden includes elements excluded from the accessibility tree in role queries.
func WithHidden(hidden bool) Option {
	return func(o *options) { o.hidden = hidden }
}
