package internal

import (
	"regexp"

	"github.com/sirupsen/logrus"
)

// PatternOptions tweak how the search expression is compiled.
type PatternOptions struct {
	IgnoreCase bool // prefix (?i)
	Fixed      bool // treat the expression as a literal string
}

// Pattern is a compiled search expression.
// It holds no mutable state and one instance is shared by all scan tasks.
type Pattern struct {
	expr string
	re   *regexp.Regexp
}

// CompilePattern compiles expr. An invalid expression yields *PatternError.
func CompilePattern(expr string, opts PatternOptions) (*Pattern, error) {
	src := expr
	if opts.Fixed {
		src = regexp.QuoteMeta(src)
	}
	if opts.IgnoreCase {
		src = "(?i)" + src
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, &PatternError{Pattern: expr, Err: err}
	}
	logrus.WithFields(logrus.Fields{"pattern": expr, "compiled": src}).Debug("Pattern compiled")
	return &Pattern{expr: expr, re: re}, nil
}

// IsMatch reports whether line contains a match.
func (p *Pattern) IsMatch(line string) bool { return p.re.MatchString(line) }

// Locate returns the byte span of the leftmost match in line.
// ok is false exactly when IsMatch(line) is false.
func (p *Pattern) Locate(line string) (start, end int, ok bool) {
	loc := p.re.FindStringIndex(line)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

func (p *Pattern) String() string { return p.expr }
