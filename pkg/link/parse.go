package link

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"
	"time"
)

const (
	testModePrefix = "[TEST MODE] "
	diagPrefix     = "I2CDBG "
)

var (
	errFormat = errors.New("unexpected format")
	errRange  = errors.New("out of range")
)

// IsStatus reports whether line looks like a status report.
func IsStatus(line string) bool {
	return strings.HasPrefix(strings.TrimPrefix(line, testModePrefix), "S1: ")
}

// IsDiag reports whether line looks like a bus diagnostic summary.
func IsDiag(line string) bool {
	return strings.HasPrefix(line, diagPrefix)
}

// ParseStatus parses a status report.
// Format: S1: 1.750mm | S2: 1.751mm | ADC: [532, 540] | I2C: ACTIVE (12 requests) | Normal Mode
// The line may carry a "[TEST MODE] " prefix.
func ParseStatus(line string) (RawSample, error) {
	var s RawSample
	body := strings.TrimSpace(line)
	if strings.HasPrefix(body, testModePrefix) {
		s.TestMode = true
		body = strings.TrimPrefix(body, testModePrefix)
	}

	parts := strings.Split(body, " | ")
	if len(parts) != 5 {
		return RawSample{}, &ParseError{Line: line, Field: "status", Err: errFormat}
	}

	var err error
	if s.S1, err = parseMM(parts[0], "S1: "); err != nil {
		return RawSample{}, &ParseError{Line: line, Field: "S1", Err: err}
	}
	if s.S2, err = parseMM(parts[1], "S2: "); err != nil {
		return RawSample{}, &ParseError{Line: line, Field: "S2", Err: err}
	}
	if s.Raw1, s.Raw2, err = parseADC(parts[2]); err != nil {
		return RawSample{}, &ParseError{Line: line, Field: "ADC", Err: err}
	}
	if s.Active, s.Requests, err = parseLink(parts[3]); err != nil {
		return RawSample{}, &ParseError{Line: line, Field: "I2C", Err: err}
	}
	s.Mode = parts[4]

	return s, nil
}

func parseMM(field, label string) (float64, error) {
	if !strings.HasPrefix(field, label) || !strings.HasSuffix(field, "mm") {
		return 0, errFormat
	}
	value := strings.TrimSuffix(strings.TrimPrefix(field, label), "mm")
	return strconv.ParseFloat(value, 64)
}

func parseADC(field string) (uint16, uint16, error) {
	if !strings.HasPrefix(field, "ADC: [") || !strings.HasSuffix(field, "]") {
		return 0, 0, errFormat
	}
	values := strings.Split(strings.TrimSuffix(strings.TrimPrefix(field, "ADC: ["), "]"), ", ")
	if len(values) != 2 {
		return 0, 0, errFormat
	}
	var raw [2]uint16
	for i, v := range values {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return 0, 0, err
		}
		if n > 4095 {
			return 0, 0, errRange
		}
		raw[i] = uint16(n)
	}
	return raw[0], raw[1], nil
}

func parseLink(field string) (bool, uint32, error) {
	// I2C: ACTIVE (12 requests)
	rest, ok := strings.CutPrefix(field, "I2C: ")
	if !ok {
		return false, 0, errFormat
	}
	state, count, ok := strings.Cut(rest, " (")
	if !ok || !strings.HasSuffix(count, " requests)") {
		return false, 0, errFormat
	}
	var active bool
	switch state {
	case "ACTIVE":
		active = true
	case "IDLE":
	default:
		return false, 0, errFormat
	}
	n, err := strconv.ParseUint(strings.TrimSuffix(count, " requests)"), 10, 32)
	if err != nil {
		return false, 0, err
	}
	return active, uint32(n), nil
}

// ParseDiag parses a bus diagnostic summary.
// Format: I2CDBG own7=0x42 total=2 rd=1 wr=1 gc=0 ioerr=0 reinits=0 qovf=0 req=1
func ParseDiag(line string) (Diag, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(line), diagPrefix)
	if !ok {
		return Diag{}, &ParseError{Line: line, Field: "diagnostic", Err: errFormat}
	}

	var d Diag
	seen := 0
	for _, kv := range strings.Fields(body) {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return Diag{}, &ParseError{Line: line, Field: kv, Err: errFormat}
		}
		if key == "own7" {
			n, err := strconv.ParseUint(value, 0, 8)
			if err != nil {
				return Diag{}, &ParseError{Line: line, Field: key, Err: err}
			}
			d.Address = uint8(n)
			seen++
			continue
		}

		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return Diag{}, &ParseError{Line: line, Field: key, Err: err}
		}
		v := uint32(n)
		switch key {
		case "total":
			d.Counters.Total = v
		case "rd":
			d.Counters.ReadAddressed = v
		case "wr":
			d.Counters.WriteAddressed = v
		case "gc":
			d.Counters.WriteGeneral = v
		case "ioerr":
			d.Counters.WriteReadError = v
		case "reinits":
			d.Counters.Reinit = v
		case "qovf":
			d.Counters.QueueOverflow = v
		case "req":
			d.Requests = v
		default:
			continue
		}
		seen++
	}
	if seen != 9 {
		return Diag{}, &ParseError{Line: line, Field: "diagnostic", Err: errFormat}
	}

	return d, nil
}

// dispatch reads lines from r until EOF or ctx is done, sending parsed status
// reports to samples and diagnostic summaries to events. Other lines are
// ignored. A full channel drops the value.
func dispatch(ctx context.Context, r io.Reader, samples chan<- RawSample, events chan<- Diag) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case IsStatus(line):
			sample, err := ParseStatus(line)
			if err != nil {
				log.Printf("Failed to parse status: %v", err)
				continue
			}
			sample.Timestamp = time.Now()
			select {
			case samples <- sample:
			default:
				log.Printf("Samples channel full, dropping sample")
			}

		case IsDiag(line):
			d, err := ParseDiag(line)
			if err != nil {
				log.Printf("Failed to parse diagnostics: %v", err)
				continue
			}
			d.Timestamp = time.Now()
			select {
			case events <- d:
			default:
			}
		}
	}

	select {
	case <-ctx.Done():
		return nil
	default:
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
