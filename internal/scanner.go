package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

// ScanOutcome is the result of one task. Err == nil means the scan succeeded,
// possibly with zero matches.
type ScanOutcome struct {
	Name    string
	Matches []MatchRecord
	Err     error

	index int // position of the task, used by KeepOrder
}

// ScanFile reads filename fully and collects its matching lines.
// On any error no matches are returned.
func ScanFile(p *Pattern, filename string) ScanOutcome {
	f, err := os.Open(filename)
	if err != nil {
		return ScanOutcome{Name: filename, Err: &FileError{Filename: filename, Err: err}}
	}
	defer f.Close()

	content, err := readText(f)
	if err != nil {
		return ScanOutcome{Name: filename, Err: &FileError{Filename: filename, Err: err}}
	}
	return ScanOutcome{Name: filename, Matches: matchLines(p, content)}
}

func scanTask(ctx context.Context, p *Pattern, t Task) ScanOutcome {
	switch {
	case t.err != nil:
		return ScanOutcome{Name: t.Name(), Err: t.err}
	case t.empty:
		return ScanOutcome{Name: t.Name()}
	case t.isArchive:
		return ScanOutcome{Name: t.Name(), Matches: matchLines(p, t.content)}
	default:
		return ScanFile(p, t.path)
	}
}

type job struct {
	index int
	task  Task
}

// Searcher runs one scan per input file concurrently and feeds the outcomes
// to the reporter and the failure handler.
type Searcher struct {
	opts     SearchOptions
	reporter *Reporter
	failures *FailureHandler
	stats    *AppStats
	progress io.Writer // nil disables the progress bar

	scan func(context.Context, *Pattern, Task) ScanOutcome
}

func NewSearcher(opts SearchOptions, rep *Reporter, fail *FailureHandler, stats *AppStats, progress io.Writer) *Searcher {
	return &Searcher{
		opts:     opts,
		reporter: rep,
		failures: fail,
		stats:    stats,
		progress: progress,
		scan:     scanTask,
	}
}

// Run compiles the pattern, scans every file and waits for all of them.
// Sibling scans are never cancelled: a failed file is reported and the rest
// carry on. The returned error wraps ErrFilesFailed when some file could not
// be read and ErrTaskCrashed when a task panicked.
func (s *Searcher) Run(ctx context.Context) (Summary, error) {
	s.stats.Start()

	pattern, err := CompilePattern(s.opts.Pattern, s.opts.patternOptions())
	if err != nil {
		return s.stats.Snapshot(), err
	}

	tasks := ExpandTasks(ctx, s.opts.Filenames, s.opts.Archives)
	s.opts.Prepare(len(tasks))
	s.stats.FilesFound.Add(int64(len(tasks)))
	logrus.WithFields(logrus.Fields{"tasks": len(tasks), "workers": s.opts.Threads}).Debug("Starting scan")

	bar := newProgress(s.progress, len(tasks))

	// buffered to the task count so workers never wait on the reporter
	outcomes := make(chan ScanOutcome, len(tasks))
	var wg sync.WaitGroup

	pool, err := ants.NewPoolWithFunc(s.opts.Threads, func(i interface{}) {
		defer wg.Done()
		outcomes <- s.runTask(ctx, pattern, i.(job))
	})
	if err != nil {
		return s.stats.Snapshot(), fmt.Errorf("pool: %w", err)
	}
	defer pool.Release()

	go func() {
		for i, t := range tasks {
			wg.Add(1)
			if err := pool.Invoke(job{index: i, task: t}); err != nil {
				wg.Done()
				logrus.WithError(err).WithField("file", t.Name()).Error("submit task")
				outcomes <- ScanOutcome{Name: t.Name(), Err: &TaskError{Name: t.Name(), Value: err}, index: i}
			}
		}
		wg.Wait()
		close(outcomes)
	}()

	var (
		failed  *multierror.Error
		crashed []*TaskError
		ordered []ScanOutcome
	)
	if s.opts.KeepOrder {
		ordered = make([]ScanOutcome, len(tasks))
	}
	emit := func(o ScanOutcome) {
		var te *TaskError
		switch {
		case errors.As(o.Err, &te):
			s.stats.Crashed.Add(1)
			crashed = append(crashed, te)
		case o.Err != nil:
			s.stats.Errors.Add(1)
			failed = multierror.Append(failed, o.Err)
			s.failures.Report(o.Err)
		default:
			s.stats.FilesProcessed.Add(1)
			s.stats.Matches.Add(int64(len(o.Matches)))
			if err := s.reporter.Report(o.Name, o.Matches, pattern); err != nil {
				logrus.WithError(err).WithField("file", o.Name).Error("write report")
				failed = multierror.Append(failed, fmt.Errorf("write report for %s: %w", o.Name, err))
			}
		}
	}

	for o := range outcomes {
		bar.Add()
		if s.opts.KeepOrder {
			ordered[o.index] = o
			continue
		}
		emit(o)
	}
	bar.Finish()

	// every task has finished here
	for _, o := range ordered {
		emit(o)
	}
	for _, te := range crashed {
		logrus.WithField("file", te.Name).Errorf("Task crashed:\n%s", te.Stack)
		s.failures.Report(te)
	}

	sum := s.stats.Snapshot()
	if len(crashed) > 0 {
		return sum, fmt.Errorf("%w: %d task(s)", ErrTaskCrashed, len(crashed))
	}
	if err := failed.ErrorOrNil(); err != nil {
		return sum, fmt.Errorf("%w: %w", ErrFilesFailed, err)
	}
	return sum, nil
}

// runTask turns a panic inside the scan into a TaskError outcome.
func (s *Searcher) runTask(ctx context.Context, p *Pattern, j job) (out ScanOutcome) {
	name := j.task.Name()
	defer func() {
		if r := recover(); r != nil {
			out = ScanOutcome{
				Name:  name,
				Err:   &TaskError{Name: name, Value: r, Stack: debug.Stack()},
				index: j.index,
			}
		}
	}()

	out = s.scan(ctx, p, j.task)
	out.index = j.index
	logrus.WithFields(logrus.Fields{"file": name, "matches": len(out.Matches), "err": out.Err}).Debug("Scan finished")
	return out
}
