// Package transcode wraps the external chunked encoder, audio muxer,
// subtitle extractor/burn-in, and container muxer as typed subprocess
// adapters (spec.md §4.5). Every adapter shares the contract: spawn,
// pipe stdout/stderr, return (exit code, stderr tail) on failure.
package transcode

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gwlsn/pipeline/internal/logging"
)

// Progress is the tuple the encoder adapter parses off stderr. Any field
// may be unset — a parse miss on one field never fails the job
// (spec.md §9 "tolerate format drift").
type Progress struct {
	Percent *float64
	Speed   *float64
	ETA     *time.Duration
	Frame   *int
	Total   *int
}

var (
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	speedRe   = regexp.MustCompile(`speed[=:]\s*([\d.]+)x`)
	etaRe     = regexp.MustCompile(`eta[=:]\s*(\d+):(\d\d):(\d\d)`)
	frameRe   = regexp.MustCompile(`frame[=:]\s*(\d+)`)
	totalRe   = regexp.MustCompile(`total[=:]\s*(\d+)`)
)

// parseProgressLine attempts to extract percent, speed, ETA, frame, and
// total from one line of chunked-encoder stderr. Returns ok=false if none
// of the fields parsed (line is logged verbatim at debug by the caller).
func parseProgressLine(line string) (Progress, bool) {
	var p Progress
	found := false

	if m := percentRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.Percent = &v
			found = true
		}
	}
	if m := speedRe.FindStringSubmatch(strings.ToLower(line)); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.Speed = &v
			found = true
		}
	}
	if m := etaRe.FindStringSubmatch(strings.ToLower(line)); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		d := time.Duration(h)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(s)*time.Second
		p.ETA = &d
		found = true
	}
	if m := frameRe.FindStringSubmatch(strings.ToLower(line)); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			p.Frame = &v
			found = true
		}
	}
	if m := totalRe.FindStringSubmatch(strings.ToLower(line)); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			p.Total = &v
			found = true
		}
	}

	return p, found
}

// streamProgress reads stderr line by line, publishing each successfully
// parsed Progress to progressCh (non-blocking) and logging unparseable
// lines verbatim at debug. It also accumulates the stderr tail for error
// reporting and returns it once r is exhausted.
func streamProgress(r io.Reader, progressCh chan<- Progress) string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var tail []string
	const tailLines = 20

	for scanner.Scan() {
		line := scanner.Text()

		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[1:]
		}

		if p, ok := parseProgressLine(line); ok {
			if progressCh != nil {
				select {
				case progressCh <- p:
				default:
				}
			}
		} else {
			logging.Debug("unparsed encoder output", "line", line)
		}
	}

	return strings.Join(tail, "\n")
}
