package internal

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"unicode/utf8"
)

// MatchRecord is one matching line. LineNumber is 1-based.
type MatchRecord struct {
	LineNumber int
	Line       string
}

// readText reads r fully and rejects content that is not UTF-8 text.
func readText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrNotText
	}
	return string(data), nil
}

// matchLines numbers every line of content and keeps the matching ones.
// A trailing newline does not produce an extra empty line and "\r\n" endings
// lose their '\r'. A '\r' not followed by '\n' stays part of the line.
func matchLines(p *Pattern, content string) []MatchRecord {
	sc := bufio.NewScanner(strings.NewReader(content))
	// whole content is already in memory; allow a single line to be that long
	sc.Buffer(make([]byte, 0, 64*1024), len(content)+1)
	sc.Split(scanLines)

	var matches []MatchRecord
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := sc.Text()
		if p.IsMatch(line) {
			matches = append(matches, MatchRecord{LineNumber: lineNum, Line: line})
		}
	}
	// strings.Reader never fails and the buffer fits the content, so sc.Err() is nil
	return matches
}

// scanLines is bufio.ScanLines except that '\r' is only dropped before '\n'.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
