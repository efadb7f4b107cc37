package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/llcprefetch/internal/event"
)

// traceRecord is one line of a trace file: "pc addr hit type", whitespace
// separated, hex or decimal integers (0x prefix selects hex), hit as 0/1,
// type as one of LOAD/RFO/PREFETCH/WRITEBACK/TRANSLATION (case-insensitive,
// defaults to LOAD if omitted). This is the thin external-adapter format
// spec.md §1 leaves unspecified ("how events reach the prefetcher ... is
// external").
type traceRecord struct {
	PC, Addr uint64
	Hit      bool
	Type     event.AccessType
}

func parseTraceLine(line string) (traceRecord, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return traceRecord{}, fmt.Errorf("expected at least 2 fields (pc addr), got %d", len(fields))
	}

	pc, err := parseUint(fields[0])
	if err != nil {
		return traceRecord{}, fmt.Errorf("pc: %w", err)
	}
	addr, err := parseUint(fields[1])
	if err != nil {
		return traceRecord{}, fmt.Errorf("addr: %w", err)
	}

	rec := traceRecord{PC: pc, Addr: addr, Type: event.Load}

	if len(fields) >= 3 {
		hit, err := strconv.ParseBool(fields[2])
		if err != nil {
			n, nerr := strconv.Atoi(fields[2])
			if nerr != nil {
				return traceRecord{}, fmt.Errorf("hit: %w", err)
			}
			hit = n != 0
		}
		rec.Hit = hit
	}

	if len(fields) >= 4 {
		rec.Type = parseAccessType(fields[3])
	}

	return rec, nil
}

func parseAccessType(s string) event.AccessType {
	switch strings.ToUpper(s) {
	case "RFO":
		return event.RFO
	case "PREFETCH":
		return event.Prefetch
	case "WRITEBACK":
		return event.Writeback
	case "TRANSLATION":
		return event.Translation
	default:
		return event.Load
	}
}

func parseUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	return strconv.ParseUint(s, base, 64)
}

// readTrace calls fn for every well-formed record in r, skipping blank lines
// and lines starting with '#'. It returns the count of malformed lines
// skipped alongside any I/O error.
func readTrace(r io.Reader, fn func(traceRecord)) (malformed int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, perr := parseTraceLine(line)
		if perr != nil {
			malformed++
			continue
		}
		fn(rec)
	}
	return malformed, scanner.Err()
}
