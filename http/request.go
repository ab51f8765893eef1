package http

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

var (
	ErrMalformedRequestLine = errors.New("http: malformed request line")
	ErrInvalidTarget        = errors.New("http: invalid request target")
	ErrHeaderTooLarge       = errors.New("http: header block too large")
	ErrTooManyHeaders       = errors.New("http: too many headers")
	ErrIncompleteRequest    = errors.New("http: incomplete request")
)

// ParseError reports a request that could not be parsed. The Request it
// came from is left in its default state.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Request struct {
	Method    Method
	Version   Version
	Path      string
	Host      string
	UserAgent string
	Headers   Headers

	Body string
}

// Parse reads one request from reader. Lines are read until the empty line
// ending the header block; the block may not exceed maxHeaderBytes.
//
// A stream that ends before any byte is read returns io.EOF. A request that
// can not be parsed returns a *ParseError and leaves req as after Reset:
// GET, HTTP/1.1, empty path. Any other error comes from the reader itself.
func (req *Request) Parse(reader *bufio.Reader, maxHeaderBytes int) error {
	req.Reset()

	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}
	lr := lineReader{
		reader:  reader,
		decoder: unicode.UTF8.NewDecoder(),
		budget:  maxHeaderBytes,
	}

	// Read request line, skipping leading empty lines
	var requestLine string
	for requestLine == "" {
		line, err := lr.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) && lr.budget == maxHeaderBytes {
				return io.EOF
			}
			return req.readFail("request line", err)
		}
		requestLine = line
	}

	parts := strings.Fields(requestLine)
	if len(parts) != 3 {
		return req.fail("request line", fmt.Errorf("%w: %q", ErrMalformedRequestLine, requestLine))
	}

	method, err := ParseMethod(parts[0])
	if err != nil {
		return req.fail("request line", err)
	}
	path, err := parseTarget(parts[1])
	if err != nil {
		return req.fail("request line", err)
	}
	version, err := ParseVersion(parts[2])
	if err != nil {
		return req.fail("request line", err)
	}

	// Read headers
	for count := 0; ; count++ {
		line, err := lr.readLine()
		if err != nil {
			return req.readFail("header", err)
		}
		if line == "" {
			break // end of headers
		}
		if count == MaxRequestHeaders {
			return req.fail("header", ErrTooManyHeaders)
		}

		name, value, found := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			continue
		}
		req.Headers.Add(name, strings.TrimSpace(value))
	}

	// Capture body
	if v := req.Headers.Get("content-length"); v != "" {
		n, err := atoi([]byte(v))
		if err == nil && n > 0 && n <= MaxBodyBytes {
			body := make([]byte, n)
			if _, err := io.ReadFull(reader, body); err != nil {
				return req.readFail("body", err)
			}
			req.Body = string(body)
		}
	}

	req.Method = method
	req.Version = version
	req.Path = path
	req.Host = req.Headers.Get("host")
	req.UserAgent = req.Headers.Get("user-agent")
	return nil
}

func (req *Request) HeaderValue(name string) (string, bool) {
	v, found := req.Headers[strings.ToLower(name)]
	return v, found
}

func (req *Request) Reset() {
	req.Method = MethodGet
	req.Version = HTTP11
	req.Path = ""
	req.Host = ""
	req.UserAgent = ""
	req.Body = ""

	if req.Headers == nil {
		req.Headers = make(Headers)
	}
	clear(req.Headers)
}

func (req *Request) fail(reason string, err error) error {
	req.Reset()
	return &ParseError{Reason: reason, Err: err}
}

// readFail classifies an error from the connection. Running out of input
// mid-request is a parse failure; anything else belongs to the connection.
func (req *Request) readFail(reason string, err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return req.fail(reason, ErrIncompleteRequest)
	case errors.Is(err, ErrHeaderTooLarge):
		return req.fail(reason, err)
	}

	req.Reset()
	return err
}

// parseTarget accepts origin-form targets only and drops the query.
func parseTarget(target string) (string, error) {
	if !strings.HasPrefix(target, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	path, _, _ := strings.Cut(target, "?")
	return path, nil
}

type lineReader struct {
	reader  *bufio.Reader
	decoder *encoding.Decoder
	budget  int
}

// readLine returns the next line without its line ending. Invalid UTF-8 is
// replaced with U+FFFD.
func (lr *lineReader) readLine() (string, error) {
	var line []byte
	for {
		chunk, err := lr.reader.ReadSlice('\n')
		if len(chunk) > lr.budget {
			return "", ErrHeaderTooLarge
		}
		lr.budget -= len(chunk)
		line = append(line, chunk...)

		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return "", err
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	decoded, err := lr.decoder.Bytes(line)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
