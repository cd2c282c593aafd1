package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Stream is a recording's event data split by signal.
type Stream struct {
	Pointer *Track
	Caret   *Track
	Clicks  *Track
	Keys    *Track

	Unknown int // records with an unrecognized kind, skipped
}

// NewStream splits mixed samples by kind. Input order is kept per kind.
func NewStream(samples []Sample) *Stream {
	var pointer, caret, clicks, keys []Sample
	s := &Stream{}
	for _, sm := range samples {
		switch sm.Kind {
		case KindPointer, "":
			pointer = append(pointer, sm)
		case KindCaret:
			caret = append(caret, sm)
		case KindClick:
			clicks = append(clicks, sm)
		case KindKeypress:
			keys = append(keys, sm)
		default:
			s.Unknown++
		}
	}
	s.Pointer = NewTrack(KindPointer, pointer)
	s.Caret = NewTrack(KindCaret, caret)
	s.Clicks = NewTrack(KindClick, clicks)
	s.Keys = NewTrack(KindKeypress, keys)
	return s
}

// Errs returns the data errors of every unusable track.
func (s *Stream) Errs() []error {
	var errs []error
	for _, t := range []*Track{s.Pointer, s.Caret, s.Clicks, s.Keys} {
		if err := t.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Read decodes an event stream that is either one JSON array of records or
// one JSON record per line.
func Read(r io.Reader) (*Stream, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return NewStream(nil), nil
	}
	if err != nil {
		return nil, err
	}

	var samples []Sample
	if first == '[' {
		if err := json.NewDecoder(br).Decode(&samples); err != nil {
			return nil, fmt.Errorf("decode event array: %w", err)
		}
		return NewStream(samples), nil
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var s Sample
		if err := json.Unmarshal(text, &s); err != nil {
			return nil, fmt.Errorf("decode event line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewStream(samples), nil
}

// Load reads an event stream file.
func Load(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
