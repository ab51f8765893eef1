package http

import (
	"bufio"
	"context"
	"log/slog"
	"net"

	"github.com/google/uuid"
)

// RequestCtx carries one connection through parsing, handling and writing.
// A worker reuses the same RequestCtx for every connection it serves.
type RequestCtx struct {
	Conn       net.Conn
	ConnReader *bufio.Reader
	ConnWriter *bufio.Writer

	ID     uuid.UUID
	Logger *slog.Logger

	Request  Request
	Response *Response

	ctx context.Context
}

func NewRequestCtx() *RequestCtx {
	return &RequestCtx{
		ConnReader: bufio.NewReaderSize(nil, DefaultReadBufferSize),
		ConnWriter: bufio.NewWriterSize(nil, DefaultWriteBufferSize),
		ctx:        context.Background(),
	}
}

func (reqCtx *RequestCtx) Reset(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	reqCtx.Conn = conn
	reqCtx.ConnReader.Reset(conn)
	reqCtx.ConnWriter.Reset(conn)

	reqCtx.ID = uuid.New()
	reqCtx.Logger = logger.With(
		"request_id", reqCtx.ID.String(),
		"remote_addr", conn.RemoteAddr().String(),
	)

	reqCtx.Request.Reset()
	reqCtx.Response = nil
	reqCtx.ctx = ctx
}

func (reqCtx *RequestCtx) Context() context.Context {
	return reqCtx.ctx
}

func (reqCtx *RequestCtx) SetContext(ctx context.Context) {
	reqCtx.ctx = ctx
}

func (reqCtx *RequestCtx) WithText(status StatusCode, body string) {
	reqCtx.Response = NewResponse(reqCtx.Request.Version, ContentTypeTextPlain, status, body)
}

func (reqCtx *RequestCtx) WithHTML(status StatusCode, body string) {
	reqCtx.Response = NewResponse(reqCtx.Request.Version, ContentTypeTextHTML, status, body)
}

// WithStatus answers with the status text as plain body.
func (reqCtx *RequestCtx) WithStatus(status StatusCode) {
	reqCtx.WithText(status, status.Text())
}
