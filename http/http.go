package http

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultReadBufferSize  = 4096 // 4kB
	DefaultWriteBufferSize = 4096 // 4kB
	DefaultMaxHeaderBytes  = 8 * 1024
	MaxBodyBytes           = 1024 * 1024
	MaxRequestHeaders      = 255
)

var (
	ErrUnknownMethod  = errors.New("http: unknown method")
	ErrUnknownVersion = errors.New("http: unknown version")
)

type Method uint8

// The zero Method is GET.
const (
	MethodGet Method = iota
	MethodPost
)

func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(s) {
	case "GET":
		return MethodGet, nil
	case "POST":
		return MethodPost, nil
	}
	return MethodGet, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

func (method Method) String() string {
	switch method {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	}
	return "UNKNOWN"
}

type Version uint8

// The zero Version is HTTP/1.1.
const (
	HTTP11 Version = iota
	HTTP10
	HTTP20
)

func ParseVersion(s string) (Version, error) {
	switch strings.ToUpper(s) {
	case "HTTP/1.0":
		return HTTP10, nil
	case "HTTP/1.1":
		return HTTP11, nil
	case "HTTP/2.0":
		return HTTP20, nil
	}
	return HTTP11, fmt.Errorf("%w: %q", ErrUnknownVersion, s)
}

func (version Version) String() string {
	switch version {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	case HTTP20:
		return "HTTP/2.0"
	}
	return "HTTP/1.1"
}

type ContentType uint8

const (
	ContentTypeTextPlain ContentType = iota
	ContentTypeTextHTML
)

func (contentType ContentType) String() string {
	switch contentType {
	case ContentTypeTextPlain:
		return "text/plain"
	case ContentTypeTextHTML:
		return "text/html"
	}
	return "text/plain"
}

// Headers maps lower-cased header names to their values. Repeated headers
// are joined with ", ".
type Headers map[string]string

func (headers Headers) Get(name string) string {
	return headers[strings.ToLower(name)]
}

func (headers Headers) Set(name, value string) {
	headers[strings.ToLower(name)] = value
}

func (headers Headers) Add(name, value string) {
	key := strings.ToLower(name)
	if existing, found := headers[key]; found {
		headers[key] = existing + ", " + value
		return
	}
	headers[key] = value
}

func (headers Headers) Keys() []string {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	return keys
}
