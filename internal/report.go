package internal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Reporter prints per-file match reports.
// Each report is written with a single Write so reports never interleave.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	tag    *color.Color
	count  *color.Color
	lineNo *color.Color
	match  *color.Color
}

func NewReporter(w io.Writer, colors bool) *Reporter {
	r := &Reporter{
		w:      w,
		tag:    color.New(color.FgGreen, color.Bold),
		count:  color.New(color.FgGreen, color.Bold),
		lineNo: color.New(color.FgCyan, color.Bold),
		match:  color.New(color.FgGreen, color.Bold),
	}
	for _, c := range []*color.Color{r.tag, r.count, r.lineNo, r.match} {
		if colors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Report writes the summary line for name followed by one line per match.
func (r *Reporter) Report(name string, matches []MatchRecord, p *Pattern) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: In file: '%s' %s matches found\n",
		r.tag.Sprint("fsrep success"), name, r.count.Sprint(len(matches)))
	for _, m := range matches {
		fmt.Fprintf(&b, "%s: %s\n", r.lineNo.Sprint(m.LineNumber), r.highlight(p, m.Line))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := io.WriteString(r.w, b.String())
	return err
}

// highlight colours the first match span of line.
func (r *Reporter) highlight(p *Pattern, line string) string {
	start, end, ok := p.Locate(line)
	if !ok {
		return line
	}
	return line[:start] + r.match.Sprint(line[start:end]) + line[end:]
}
