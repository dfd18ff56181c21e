package preview

import (
	"errors"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := map[string]struct {
		header    string
		size      int64
		wantStart int64
		wantEnd   int64
		wantNil   bool
		wantErr   error
	}{
		"empty header":            {header: "", size: 1000, wantNil: true},
		"full range":              {header: "bytes=0-999", size: 1000, wantStart: 0, wantEnd: 999},
		"open end":                {header: "bytes=500-", size: 1000, wantStart: 500, wantEnd: 999},
		"suffix":                  {header: "bytes=-500", size: 1000, wantStart: 500, wantEnd: 999},
		"single byte":             {header: "bytes=0-0", size: 1000, wantStart: 0, wantEnd: 0},
		"middle":                  {header: "bytes=100-199", size: 1000, wantStart: 100, wantEnd: 199},
		"end clamped to size":     {header: "bytes=0-2000", size: 1000, wantStart: 0, wantEnd: 999},
		"suffix larger than file": {header: "bytes=-2000", size: 500, wantStart: 0, wantEnd: 499},
		"last byte":               {header: "bytes=999-", size: 1000, wantStart: 999, wantEnd: 999},
		"multi range takes first": {header: "bytes=0-99, 200-299", size: 1000, wantStart: 0, wantEnd: 99},

		"start at size":      {header: "bytes=1000-", size: 1000, wantErr: ErrUnsatisfiable},
		"start beyond size":  {header: "bytes=1500-2000", size: 1000, wantErr: ErrUnsatisfiable},
		"inverted":           {header: "bytes=200-100", size: 1000, wantErr: ErrUnsatisfiable},
		"missing unit":       {header: "0-100", size: 1000, wantErr: ErrInvalidRange},
		"wrong unit":         {header: "chars=0-100", size: 1000, wantErr: ErrInvalidRange},
		"garbage start":      {header: "bytes=abc-100", size: 1000, wantErr: ErrInvalidRange},
		"garbage end":        {header: "bytes=0-abc", size: 1000, wantErr: ErrInvalidRange},
		"zero suffix":        {header: "bytes=-0", size: 1000, wantErr: ErrInvalidRange},
		"bare dash":          {header: "bytes=-", size: 1000, wantErr: ErrInvalidRange},
		"no dash":            {header: "bytes=100", size: 1000, wantErr: ErrInvalidRange},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseRange(tc.header, tc.size)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ParseRange(%q) error = %v, want %v", tc.header, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange(%q) unexpected error: %v", tc.header, err)
			}
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ParseRange(%q) = %+v, want nil", tc.header, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseRange(%q) = nil, want range", tc.header)
			}
			if got.Start != tc.wantStart || got.End != tc.wantEnd {
				t.Errorf("ParseRange(%q) = [%d, %d], want [%d, %d]", tc.header, got.Start, got.End, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestByteRange_Length(t *testing.T) {
	tests := []struct {
		start, end, want int64
	}{
		{0, 99, 100},
		{0, 0, 1},
		{500, 999, 500},
	}
	for _, tc := range tests {
		r := ByteRange{Start: tc.start, End: tc.end}
		if got := r.Length(); got != tc.want {
			t.Errorf("Length() of [%d, %d] = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestByteRange_ContentRange(t *testing.T) {
	r := ByteRange{Start: 500, End: 999}
	if got := r.ContentRange(1000); got != "bytes 500-999/1000" {
		t.Errorf("ContentRange(1000) = %q, want %q", got, "bytes 500-999/1000")
	}
}
