package httprange

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	ErrEmptyResource       = errors.New("resource is empty")
)

// An inclusive byte window [Start, End] of a resource of Total bytes.
type ByteRange struct {
	Start, End, Total int64
}

// Get the number of bytes in the window.
func (br ByteRange) Length() int64 { return br.End - br.Start + 1 }

// Determine whether the window covers the whole resource.
func (br ByteRange) Full() bool { return br.Start == 0 && br.End == br.Total-1 }

// Get the value of the Content-Range header for the window.
func (br ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", br.Start, br.End, br.Total)
}

// Get the value of the Content-Range header for a 416 response.
func UnsatisfiedContentRange(total int64) string {
	return fmt.Sprintf("bytes */%d", total)
}

func fullWindow(total int64) ByteRange {
	return ByteRange{Start: 0, End: total - 1, Total: total}
}

// Resolve the serving window for the Range header of a resource of total bytes.
// Reports whether the window is an honored partial range. Only the single
// "bytes=<start>-<end>" form is honored; anything unparsable falls back to
// the whole resource.
func ParseWindow(s string, total int64) (ByteRange, bool, error) {
	if total < 1 {
		return ByteRange{}, false, ErrEmptyResource
	}
	start, end, ok := parseSingle(s)
	if !ok {
		return fullWindow(total), false, nil
	}
	if end < 0 || end > total-1 {
		end = total - 1
	}
	if start > end {
		return ByteRange{}, false, fmt.Errorf("%w: bytes=%d- of %d", ErrRangeNotSatisfiable, start, total)
	}
	return ByteRange{Start: start, End: end, Total: total}, true, nil
}

// Parse "bytes=<start>-<end>". A missing end is reported as -1.
func parseSingle(s string) (int64, int64, bool) {
	const b = "bytes="
	if !strings.HasPrefix(s, b) {
		return 0, 0, false
	}
	first, last, found := strings.Cut(s[len(b):], "-")
	if !found {
		return 0, 0, false
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	start, err := parseOffset(first)
	if errors.Is(err, strconv.ErrRange) {
		start, err = math.MaxInt64, nil
	}
	if err != nil {
		return 0, 0, false
	}
	if last == "" {
		return start, -1, true
	}
	end, err := parseOffset(last)
	if errors.Is(err, strconv.ErrRange) {
		// Digits past int64 end beyond any resource.
		return start, -1, true
	}
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// Parse a non-negative decimal offset without a sign.
func parseOffset(s string) (int64, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	return strconv.ParseInt(s, 10, 64)
}
