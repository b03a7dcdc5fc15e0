package internal

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestScanFile(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "a.txt")
	os.WriteFile(fp, []byte("Lorem\nsearch\n"), 0644)

	out := ScanFile(mustPattern(t, "^Lorem"), fp)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if len(out.Matches) != 1 || out.Matches[0] != (MatchRecord{LineNumber: 1, Line: "Lorem"}) {
		t.Fatalf("unexpected matches: %+v", out.Matches)
	}

	again := ScanFile(mustPattern(t, "^Lorem"), fp)
	if !reflect.DeepEqual(out, again) {
		t.Fatalf("scanning twice must give the same outcome: %+v vs %+v", out, again)
	}
}

func TestScanFile_Errors(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "bin.dat")
	os.WriteFile(bin, []byte("match\n\xff\xfe\x00"), 0644)

	cases := map[string]string{
		"missing":   filepath.Join(dir, "missing.txt"),
		"directory": dir,
		"not text":  bin,
	}
	for name, path := range cases {
		out := ScanFile(mustPattern(t, "match"), path)
		var fe *FileError
		if !errors.As(out.Err, &fe) {
			t.Errorf("%s: expected *FileError, got %v", name, out.Err)
			continue
		}
		if fe.Filename != path {
			t.Errorf("%s: wrong filename %q", name, fe.Filename)
		}
		if len(out.Matches) != 0 {
			t.Errorf("%s: failed scan must not carry matches", name)
		}
	}
}

type runResult struct {
	stdout, stderr bytes.Buffer
	sum            Summary
	err            error
}

func runSearch(t *testing.T, opts SearchOptions, tweak func(*Searcher)) *runResult {
	t.Helper()
	res := &runResult{}
	var stats AppStats
	s := NewSearcher(opts, NewReporter(&res.stdout, false), NewFailureHandler(&res.stderr, false), &stats, nil)
	if tweak != nil {
		tweak(s)
	}
	res.sum, res.err = s.Run(context.Background())
	return res
}

func TestSearcher_MultiFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	os.WriteFile(a, []byte("foo\nbar1\n"), 0644)
	os.WriteFile(b, []byte("nope\nbar2\n"), 0644)

	res := runSearch(t, SearchOptions{Pattern: `bar\d`, Filenames: []string{a, b}}, nil)
	if res.err != nil {
		t.Fatalf("Run failed: %v", res.err)
	}
	out := res.stdout.String()
	for _, want := range []string{
		"fsrep success: In file: '" + a + "' 1 matches found\n2: bar1\n",
		"fsrep success: In file: '" + b + "' 1 matches found\n2: bar2\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report must be contiguous, missing %q in:\n%s", want, out)
		}
	}
	if res.sum.Scanned != 2 || res.sum.Matches != 2 || res.sum.Errors != 0 {
		t.Errorf("unexpected summary: %+v", res.sum)
	}
	if res.stderr.Len() != 0 {
		t.Errorf("unexpected diagnostics: %q", res.stderr.String())
	}
}

func TestSearcher_MissingFileDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	missing := filepath.Join(dir, "missing.txt")
	os.WriteFile(a, []byte("hello\nmatch me\n"), 0644)

	res := runSearch(t, SearchOptions{Pattern: "match", Filenames: []string{a, missing}}, nil)
	if !errors.Is(res.err, ErrFilesFailed) {
		t.Fatalf("expected ErrFilesFailed, got %v", res.err)
	}
	if !strings.Contains(res.stdout.String(), "'"+a+"' 1 matches found\n2: match me\n") {
		t.Errorf("good file must still be reported:\n%s", res.stdout.String())
	}
	if !strings.Contains(res.stderr.String(), "fsrep failure: '"+missing+"' ") {
		t.Errorf("missing file must be diagnosed: %q", res.stderr.String())
	}
	if res.sum.Errors != 1 || res.sum.Scanned != 1 {
		t.Errorf("unexpected summary: %+v", res.sum)
	}
}

func TestSearcher_BlankFilenameFailsAlone(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a.txt")
	os.WriteFile(a, []byte("match\n"), 0644)

	res := runSearch(t, SearchOptions{Pattern: "match", Filenames: []string{a, ""}}, nil)
	if !errors.Is(res.err, ErrFilesFailed) {
		t.Fatalf("expected ErrFilesFailed, got %v", res.err)
	}
	if !strings.Contains(res.stdout.String(), "'"+a+"' 1 matches found\n1: match\n") {
		t.Errorf("good file must still be reported:\n%s", res.stdout.String())
	}
	if !strings.Contains(res.stderr.String(), "fsrep failure: ") {
		t.Errorf("blank filename must be diagnosed: %q", res.stderr.String())
	}
}

func TestSearcher_InvalidPatternStartsNoScan(t *testing.T) {
	called := false
	res := runSearch(t, SearchOptions{Pattern: "[", Filenames: []string{"a.txt"}}, func(s *Searcher) {
		s.scan = func(context.Context, *Pattern, Task) ScanOutcome {
			called = true
			return ScanOutcome{}
		}
	})
	var pe *PatternError
	if !errors.As(res.err, &pe) {
		t.Fatalf("expected *PatternError, got %v", res.err)
	}
	if called || res.stdout.Len() != 0 {
		t.Fatal("no scan may start with an invalid pattern")
	}
}

func TestSearcher_ZeroMatchesIsSuccess(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "a.txt")
	os.WriteFile(fp, []byte("Itachi\nMadara\n"), 0644)

	res := runSearch(t, SearchOptions{Pattern: "Black", Filenames: []string{fp}}, nil)
	if res.err != nil {
		t.Fatalf("zero matches must not fail: %v", res.err)
	}
	if res.stdout.String() != "fsrep success: In file: '"+fp+"' 0 matches found\n" {
		t.Fatalf("unexpected output: %q", res.stdout.String())
	}
}

func TestSearcher_TaskPanic(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	bad := filepath.Join(dir, "bad.txt")
	os.WriteFile(good, []byte("x\n"), 0644)
	os.WriteFile(bad, []byte("x\n"), 0644)

	res := runSearch(t, SearchOptions{Pattern: "x", Filenames: []string{bad, good}}, func(s *Searcher) {
		s.scan = func(ctx context.Context, p *Pattern, tk Task) ScanOutcome {
			if tk.path == bad {
				panic("boom")
			}
			return scanTask(ctx, p, tk)
		}
	})
	if !errors.Is(res.err, ErrTaskCrashed) {
		t.Fatalf("expected ErrTaskCrashed, got %v", res.err)
	}
	if !strings.Contains(res.stdout.String(), "'"+good+"' 1 matches found") {
		t.Errorf("sibling report must survive a crash:\n%s", res.stdout.String())
	}
	if !strings.Contains(res.stderr.String(), "'"+bad+"' task panic: boom") {
		t.Errorf("crash must be diagnosed: %q", res.stderr.String())
	}
	if res.sum.Crashed != 1 {
		t.Errorf("unexpected summary: %+v", res.sum)
	}
}

func TestSearcher_KeepOrder(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, n := range []string{"c", "a", "d", "b", "e", "f"} {
		fp := filepath.Join(dir, n+".txt")
		os.WriteFile(fp, []byte("line "+n+"\n"), 0644)
		files = append(files, fp)
	}

	res := runSearch(t, SearchOptions{Pattern: "line", Filenames: files, KeepOrder: true, Threads: 3}, nil)
	if res.err != nil {
		t.Fatal(res.err)
	}
	out := res.stdout.String()
	last := -1
	for _, fp := range files {
		i := strings.Index(out, "'"+fp+"'")
		if i <= last {
			t.Fatalf("reports out of argument order:\n%s", out)
		}
		last = i
	}
}

func TestSearcher_ArchiveIntegration(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "test.zip")
	writeZip(t, zipPath, map[string]string{"a.txt": "foo\nbar1\n", "b.txt": "nope\nbar2\n"})

	res := runSearch(t, SearchOptions{Pattern: `bar\d`, Filenames: []string{zipPath}, Archives: true}, nil)
	if res.err != nil {
		t.Fatalf("Run failed: %v (%s)", res.err, res.stderr.String())
	}
	out := res.stdout.String()
	if !strings.Contains(out, "'"+zipPath+":a.txt' 1 matches found") ||
		!strings.Contains(out, "'"+zipPath+":b.txt' 1 matches found") {
		t.Fatalf("expected one report per archive entry:\n%s", out)
	}
	if res.sum.Matches != 2 {
		t.Errorf("expected 2 matches in archive, got %d", res.sum.Matches)
	}
}

func TestSearcher_CompressedFile(t *testing.T) {
	gz := filepath.Join(t.TempDir(), "app.log.gz")
	f, err := os.Create(gz)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	zw.Write([]byte("start\nerror: disk full\n"))
	zw.Close()
	f.Close()

	res := runSearch(t, SearchOptions{Pattern: "^error", Filenames: []string{gz}, Archives: true}, nil)
	if res.err != nil {
		t.Fatalf("Run failed: %v (%s)", res.err, res.stderr.String())
	}
	if res.stdout.String() != "fsrep success: In file: '"+gz+"' 1 matches found\n2: error: disk full\n" {
		t.Fatalf("compressed file must report under its own name:\n%q", res.stdout.String())
	}
}
