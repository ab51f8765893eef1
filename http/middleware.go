package http

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type Middleware func(next Handler) Handler

func RecoverMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			defer func() {
				if recovered := recover(); recovered != nil {
					ctx.Logger.Error("handler panic", "panic", recovered)
					ctx.WithStatus(StatusInternalServerError)
				}
			}()

			next(ctx)
		}
	}
}

func LoggingMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			start := time.Now()
			next(ctx)

			if ctx.Response == nil {
				return
			}

			ctx.Logger.InfoContext(ctx.Context(), "request",
				"method", ctx.Request.Method.String(),
				"path", ctx.Request.Path,
				"version", ctx.Request.Version.String(),
				"host", ctx.Request.Host,
				"user_agent", ctx.Request.UserAgent,
				"status", int(ctx.Response.Status),
				"bytes", ctx.Response.ContentLength(),
				"duration", time.Since(start),
			)
		}
	}
}

// TracingMiddleware starts a server span per request, continuing any trace
// context found in the request headers, and records request counts and
// response sizes by status.
func TracingMiddleware(name string) (Middleware, error) {
	tracer := otel.Tracer(name)
	meter := otel.Meter(name)

	requestCnt, err := meter.Int64Counter("foldserve.requests",
		metric.WithDescription("The number of handled requests by status"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	responseSize, err := meter.Int64Histogram("foldserve.response.size",
		metric.WithDescription("The size of response bodies"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			parent := otel.GetTextMapPropagator().Extract(ctx.Context(), ctx.Request.Headers)
			spanCtx, span := tracer.Start(parent, ctx.Request.Method.String(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", ctx.Request.Method.String()),
					attribute.String("url.path", ctx.Request.Path),
					attribute.String("network.protocol.version", ctx.Request.Version.String()),
					attribute.String("user_agent.original", ctx.Request.UserAgent),
					attribute.String("request.id", ctx.ID.String()),
				))
			defer span.End()

			outer := ctx.Context()
			defer ctx.SetContext(outer)

			ctx.SetContext(spanCtx)
			next(ctx)

			if ctx.Response == nil {
				return
			}

			statusAttr := attribute.Int("http.response.status_code", int(ctx.Response.Status))
			span.SetAttributes(statusAttr)
			if ctx.Response.Status >= StatusInternalServerError {
				span.SetStatus(codes.Error, ctx.Response.Status.Text())
			}

			requestCnt.Add(spanCtx, 1, metric.WithAttributes(statusAttr))
			responseSize.Record(spanCtx, int64(ctx.Response.ContentLength()), metric.WithAttributes(statusAttr))
		}
	}, nil
}
