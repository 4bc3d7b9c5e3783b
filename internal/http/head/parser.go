package head

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"

	"reqlens/header"
)

var (
	ErrNoCRLF             = errors.New("invalid request: no CRLF found in start line")
	ErrMissingMethod      = errors.New("invalid start line: missing method")
	ErrMissingVersion     = errors.New("invalid start line: missing version")
	ErrBadVersion         = errors.New("invalid start line: unsupported protocol")
	ErrTooManyHeaders     = errors.New("too many header fields")
	ErrRequestLineTooLong = errors.New("request line too long")
	ErrHeaderLineTooLong  = errors.New("header line too long")
)

const (
	maxHeaderFields = 128

	// MaxLineSize bounds the request line and every header line, line ending
	// excluded.
	MaxLineSize = 64 << 10
)

func setRemainingHeaders(remaining []byte, h interface {
	Add(key string, value string)
}) {
	for len(remaining) > 0 {
		lineEnd := bytes.Index(remaining, []byte("\r\n"))
		if lineEnd == -1 {
			lineEnd = len(remaining)
		}

		line := remaining[:lineEnd]

		if len(line) == 0 {
			break
		}

		colonIdx := bytes.IndexByte(line, ':')
		if colonIdx != -1 {
			key := bytes.TrimSpace(line[:colonIdx])
			value := bytes.TrimSpace(line[colonIdx+1:])
			if len(key) > 0 {
				h.Add(string(key), string(value))
			}
		}

		if lineEnd == len(remaining) {
			break
		}

		remaining = remaining[lineEnd+2:]
	}
}

func parseHeadFromBytes(headData []byte) (RequestHead, error) {
	rh := &requestHead{
		headers: header.New(),
	}

	lineEnd := bytes.Index(headData, []byte("\r\n"))
	if lineEnd == -1 {
		return nil, ErrNoCRLF
	}

	var err error
	rh.method, rh.target, rh.version, err = parseStartLine(headData[:lineEnd])
	if err != nil {
		return nil, err
	}

	setRemainingHeaders(headData[lineEnd+2:], rh.headers)

	return rh, nil
}

func parseStartLine(startLine []byte) (method, target, version string, err error) {
	firstSpace := bytes.IndexByte(startLine, ' ')
	if firstSpace == -1 {
		return "", "", "", ErrMissingMethod
	}

	secondSpace := bytes.IndexByte(startLine[firstSpace+1:], ' ')
	if secondSpace == -1 {
		return "", "", "", ErrMissingVersion
	}
	secondSpace += firstSpace + 1

	method = string(startLine[:firstSpace])
	target = string(startLine[firstSpace+1 : secondSpace])
	version = string(startLine[secondSpace+1:])

	if !bytes.HasPrefix([]byte(version), []byte("HTTP/")) {
		return "", "", "", fmt.Errorf("%w: %q", ErrBadVersion, version)
	}

	return method, target, version, nil
}

func parseHeadFromReader(br *bufio.Reader) (RequestHead, error) {
	rh := &requestHead{
		headers: header.New(),
	}

	startLine, err := readLine(br, ErrRequestLineTooLong)
	if err != nil {
		return nil, err
	}

	rh.method, rh.target, rh.version, err = parseStartLine(startLine)
	if err != nil {
		return nil, err
	}

	for {
		line, err := readLine(br, ErrHeaderLineTooLong)
		if err != nil {
			return nil, err
		}

		if len(line) == 0 {
			break
		}

		colonIdx := bytes.IndexByte(line, ':')
		if colonIdx == -1 {
			continue
		}

		if rh.headers.Len() >= maxHeaderFields {
			return nil, ErrTooManyHeaders
		}

		key := bytes.TrimSpace(line[:colonIdx])
		value := bytes.TrimSpace(line[colonIdx+1:])
		if len(key) == 0 {
			continue
		}

		rh.headers.Add(string(key), string(value))
	}

	return rh, nil
}

// readLine returns the next line without its line ending. Lines longer than
// the reader's buffer are assembled from several reads; past MaxLineSize it
// stops reading and returns tooLong.
func readLine(br *bufio.Reader, tooLong error) ([]byte, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		line = append(line, chunk...)
		if len(bytes.TrimRight(line, "\r\n")) > MaxLineSize {
			return nil, tooLong
		}
		switch {
		case err == nil:
			return bytes.TrimRight(line, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, err
		}
	}
}

func finalize(startLine []byte, fields func(yield func(string, string) bool)) []byte {
	buf := make([]byte, 0, len(startLine)+256)
	buf = append(buf, startLine...)
	buf = append(buf, '\r', '\n')

	for key, val := range fields {
		buf = append(buf, key...)
		buf = append(buf, ':', ' ')
		buf = append(buf, val...)
		buf = append(buf, '\r', '\n')
	}

	buf = append(buf, '\r', '\n')
	return buf
}
