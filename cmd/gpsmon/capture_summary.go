package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gpsmon/internal/driver"
	"gpsmon/internal/replay"
	"gpsmon/internal/sirf"
)

type captureSummary struct {
	Segments    int
	Chunks      int
	Bytes       int
	Lines       int
	Frames      int
	Unclassed   int
	MaxDuration time.Duration
	EventCounts map[string]int
}

// summarizeCapture reassembles the recorded chunks into NMEA lines and SiRF
// frames and counts the events the driver would post for them, before
// throttling.
func summarizeCapture(records []replay.Record) captureSummary {
	s := captureSummary{EventCounts: map[string]int{}}
	origin := time.Duration(0)
	var stream bytes.Buffer

	for _, r := range records {
		if r.Data == nil {
			s.Segments++
			origin = r.At
			continue
		}
		s.Chunks++
		s.Bytes += len(r.Data)
		if at := r.At - origin; at > s.MaxDuration {
			s.MaxDuration = at
		}
		stream.Write(r.Data)
	}
	if s.Segments == 0 && s.Chunks > 0 {
		s.Segments = 1
	}

	sc := bufio.NewScanner(&stream)
	sc.Buffer(make([]byte, 0, 1024), 64*1024)
	sc.Split(driver.ScanOutput)
	for sc.Scan() {
		tok := sc.Bytes()
		switch {
		case sirf.IsStart(tok):
			s.Frames++
		case len(bytes.TrimSpace(tok)) == 0:
			continue
		default:
			s.Lines++
		}
		if e, ok := driver.ClassifyToken(tok); ok {
			s.EventCounts[e.String()]++
		} else {
			s.Unclassed++
		}
	}
	return s
}

func printCaptureSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	s := summarizeCapture(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "chunks: %d\n", s.Chunks)
	fmt.Fprintf(w, "bytes: %d\n", s.Bytes)
	fmt.Fprintf(w, "lines: %d\n", s.Lines)
	fmt.Fprintf(w, "frames: %d\n", s.Frames)
	fmt.Fprintf(w, "unclassified: %d\n", s.Unclassed)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)

	keys := make([]string, 0, len(s.EventCounts))
	for k := range s.EventCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "event_counts:\n")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, s.EventCounts[k])
	}
	return nil
}
