package preview

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range header")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// ByteRange is an inclusive [Start, End] slice of a file.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

func (r ByteRange) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// ParseRange interprets a Range request header against a file of the
// given size. A missing header yields (nil, nil). Multi-range requests
// collapse to their first range.
func ParseRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrInvalidRange
	}
	if first, _, multi := strings.Cut(spec, ","); multi {
		spec = strings.TrimSpace(first)
	}

	startPart, endPart, dashed := strings.Cut(spec, "-")
	if !dashed {
		return nil, ErrInvalidRange
	}

	var rng ByteRange
	if startPart == "" {
		suffix, err := strconv.ParseInt(endPart, 10, 64)
		if err != nil || suffix <= 0 {
			return nil, ErrInvalidRange
		}
		rng.Start = size - suffix
		if rng.Start < 0 {
			rng.Start = 0
		}
		rng.End = size - 1
	} else {
		start, err := strconv.ParseInt(startPart, 10, 64)
		if err != nil || start < 0 {
			return nil, ErrInvalidRange
		}
		rng.Start = start
		if endPart == "" {
			rng.End = size - 1
		} else {
			end, err := strconv.ParseInt(endPart, 10, 64)
			if err != nil {
				return nil, ErrInvalidRange
			}
			rng.End = end
		}
	}

	if rng.Start > rng.End || rng.Start >= size {
		return nil, ErrUnsatisfiable
	}
	if rng.End >= size {
		rng.End = size - 1
	}
	return &rng, nil
}
