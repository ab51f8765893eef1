package http

import (
	"bufio"
	"strconv"
)

var crlf = []byte("\r\n")

// Response is built once per request and written once. Its Content-Length
// is always len(Body).
type Response struct {
	Version     Version
	ContentType ContentType
	Status      StatusCode
	Body        string
}

func NewResponse(version Version, contentType ContentType, status StatusCode, body string) *Response {
	return &Response{
		Version:     version,
		ContentType: contentType,
		Status:      status,
		Body:        body,
	}
}

func (res *Response) ContentLength() int {
	return len(res.Body)
}

// Write serializes the response and flushes bw.
func (res *Response) Write(bw *bufio.Writer) error {
	var scratch [20]byte

	// Status line
	bw.WriteString(res.Version.String())
	bw.WriteByte(' ')
	bw.Write(strconv.AppendUint(scratch[:0], uint64(res.Status), 10))
	bw.WriteByte(' ')
	bw.WriteString(res.Status.Text())
	bw.Write(crlf)

	// Headers
	bw.WriteString("Content-Type: ")
	bw.WriteString(res.ContentType.String())
	bw.Write(crlf)
	bw.WriteString("Content-Length: ")
	bw.Write(strconv.AppendInt(scratch[:0], int64(res.ContentLength()), 10))
	bw.Write(crlf)
	bw.Write(crlf)

	bw.WriteString(res.Body)

	// bufio.Writer errors are sticky, Flush reports the first one
	return bw.Flush()
}
