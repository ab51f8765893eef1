package http

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/freekieb7/foldserve/test"
)

func serialize(t *testing.T, res *Response) string {
	t.Helper()

	var buf bytes.Buffer
	if err := res.Write(bufio.NewWriter(&buf)); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestResponseWrite(t *testing.T) {
	res := NewResponse(HTTP11, ContentTypeTextHTML, StatusOK, "<p>hi</p>")

	expected := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/html\r\n" +
		"Content-Length: 9\r\n" +
		"\r\n" +
		"<p>hi</p>"
	test.AssertEqual(t, expected, serialize(t, res))
}

func TestResponseWriteStatuses(t *testing.T) {
	testCases := []struct {
		version  Version
		status   StatusCode
		expected string
	}{
		{HTTP10, StatusOK, "HTTP/1.0 200 OK\r\n"},
		{HTTP11, StatusBadRequest, "HTTP/1.1 400 Bad Request\r\n"},
		{HTTP20, StatusNotFound, "HTTP/2.0 404 Not Found\r\n"},
		{HTTP11, StatusInternalServerError, "HTTP/1.1 500 Internal Server Error\r\n"},
		{HTTP11, StatusCode(418), "HTTP/1.1 418 Unknown Status Code\r\n"},
	}

	for _, tc := range testCases {
		wire := serialize(t, NewResponse(tc.version, ContentTypeTextPlain, tc.status, ""))
		statusLine, _, _ := bytes.Cut([]byte(wire), []byte("Content-Type"))
		test.AssertEqual(t, tc.expected, string(statusLine))
	}
}

func TestResponseContentLengthCountsBytes(t *testing.T) {
	res := NewResponse(HTTP11, ContentTypeTextPlain, StatusOK, "héllo ✓")

	test.AssertEqual(t, 10, res.ContentLength())

	expected := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 10\r\n" +
		"\r\n" +
		"héllo ✓"
	test.AssertEqual(t, expected, serialize(t, res))
}

func TestResponseWriteEmptyBody(t *testing.T) {
	res := NewResponse(HTTP11, ContentTypeTextPlain, StatusNotFound, "")

	expected := "HTTP/1.1 404 Not Found\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 0\r\n" +
		"\r\n"
	test.AssertEqual(t, expected, serialize(t, res))
}
