package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingType    = errors.New("frame has no type")
)

// api is the std-compatible sonic configuration (sorted keys, HTML escaping)
var api = sonic.ConfigStd

// Encode serialises a client frame
func Encode(f Frame) ([]byte, error) {
	data, err := api.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.FrameType(), err)
	}
	return data, nil
}

// Decode parses a server frame. Errors wrap ErrMalformedFrame.
func Decode(data []byte) (*ServerFrame, error) {
	var f ServerFrame
	if err := api.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, ErrMissingType)
	}
	return &f, nil
}

// timestampLayouts are tried in order; servers emit ISO-8601 with or
// without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a server timestamp. Zone-less values are read as UTC.
// It returns fallback when s cannot be parsed.
func ParseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}
