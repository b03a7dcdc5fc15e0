package internal

import "fmt"

// SearchOptions - public options from CLI.
type SearchOptions struct {
	Pattern    string
	Filenames  []string
	IgnoreCase bool
	Fixed      bool
	Threads    int
	Archives   bool
	KeepOrder  bool
	Color      bool
	Progress   bool
	Stats      bool
}

// Validate checks invariants.
func (o *SearchOptions) Validate() error {
	if len(o.Filenames) == 0 {
		return fmt.Errorf("%w: needs at least one file argument", ErrInsufficientArgs)
	}
	if o.Threads < 0 {
		return fmt.Errorf("threads must not be negative, got %d", o.Threads)
	}
	return nil
}

// Prepare sets defaults that depend on the number of tasks.
// Zero threads means one worker per task.
func (o *SearchOptions) Prepare(tasks int) {
	if o.Threads <= 0 || o.Threads > tasks {
		o.Threads = max(1, tasks)
	}
}

func (o *SearchOptions) patternOptions() PatternOptions {
	return PatternOptions{IgnoreCase: o.IgnoreCase, Fixed: o.Fixed}
}
