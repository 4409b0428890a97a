package transport

import (
	"bufio"
	"bytes"
	"io"
)

// sseStream frames a response body as Server-Sent Events and yields each
// event's concatenated data payload.
type sseStream struct {
	body   io.ReadCloser
	r      *bufio.Reader
	closed bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	return &sseStream{body: body, r: bufio.NewReaderSize(body, 64*1024)}
}

// Recv returns the next event's data payload. Multiple data: lines within
// one event are joined with \n, per the SSE spec. Comment lines and non-data
// fields are skipped.
func (s *sseStream) Recv() ([]byte, error) {
	if s.closed {
		return nil, io.EOF
	}

	var dataLines [][]byte
	for {
		line, err := s.r.ReadBytes('\n')
		if err != nil {
			if len(line) > 0 {
				line = bytes.TrimRight(line, "\r\n")
				dataLines = appendDataLine(dataLines, line)
			}
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if len(dataLines) == 0 {
				continue
			}
			return bytes.Join(dataLines, []byte("\n")), nil
		}
		if line[0] == ':' {
			continue
		}
		dataLines = appendDataLine(dataLines, line)
	}
}

func (s *sseStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// appendDataLine keeps only data: fields, stripping the field prefix and the
// single optional leading space.
func appendDataLine(dst [][]byte, line []byte) [][]byte {
	if !bytes.HasPrefix(line, []byte("data:")) {
		return dst
	}
	val := line[len("data:"):]
	if len(val) > 0 && val[0] == ' ' {
		val = val[1:]
	}
	return append(dst, append([]byte(nil), val...))
}

// lineStream frames a response body as newline-delimited chunks (NDJSON).
type lineStream struct {
	body   io.ReadCloser
	r      *bufio.Reader
	closed bool
}

func newLineStream(body io.ReadCloser) *lineStream {
	return &lineStream{body: body, r: bufio.NewReaderSize(body, 64*1024)}
}

// Recv returns the next non-empty line.
func (s *lineStream) Recv() ([]byte, error) {
	if s.closed {
		return nil, io.EOF
	}
	for {
		line, err := s.r.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")
		if len(line) > 0 {
			return line, nil
		}
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
	}
}

func (s *lineStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
