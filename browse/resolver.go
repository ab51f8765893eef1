package browse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/freekieb7/foldserve/filesystem"
	"github.com/freekieb7/foldserve/http"
)

var (
	ErrUnsafePath = errors.New("browse: unsafe path")
	ErrNotText    = errors.New("browse: file is not valid UTF-8 text")
)

// Resolver answers requests from the entries of a Filesystem. A request
// names at most one entry of the served root; deeper paths never match.
type Resolver struct {
	Filesystem filesystem.Filesystem
	Logger     *slog.Logger

	// IOTimeout bounds each directory listing and file read. Zero means no
	// bound beyond the request context.
	IOTimeout time.Duration
}

func NewResolver(fs filesystem.Filesystem, ioTimeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		Filesystem: fs,
		Logger:     logger,
		IOTimeout:  ioTimeout,
	}
}

// Handle lists the served root afresh and resolves the request against it.
// Requests matching no entry get 404.
func (resolver *Resolver) Handle(ctx *http.RequestCtx) {
	listing, err := resolver.list(ctx.Context(), ".")
	if err != nil {
		ctx.Logger.ErrorContext(ctx.Context(), "failed to list served root", "error", err)
		ctx.WithStatus(http.StatusInternalServerError)
		return
	}

	res, found := resolver.Resolve(ctx.Context(), &ctx.Request, listing)
	if !found {
		ctx.WithStatus(http.StatusNotFound)
		return
	}

	ctx.Response = res
}

// Resolve maps req to a response using listing, the entries of the served
// root. It reports false when the path names no entry.
//
// "/" renders listing. "/name" serves the file content of a matching file
// entry or renders a fresh listing of a matching directory entry. Names
// containing "..", NUL bytes or an absolute prefix are answered with 400
// before the filesystem is touched.
func (resolver *Resolver) Resolve(ctx context.Context, req *http.Request, listing []filesystem.Entry) (*http.Response, bool) {
	if req.Path == "/" {
		return resolver.render(ctx, req, "/", listing), true
	}

	name, folderOnly, err := Candidate(req.Path)
	if err != nil {
		resolver.Logger.WarnContext(ctx, "rejected request path", "path", req.Path, "error", err)
		return textResponse(req, http.StatusBadRequest), true
	}

	for _, entry := range listing {
		if entry.Name != name {
			continue
		}

		if entry.IsFile {
			if folderOnly {
				break
			}
			return resolver.serveFile(ctx, req, name)
		}
		return resolver.serveDirectory(ctx, req, name)
	}

	return nil, false
}

// Candidate returns the entry name a request path asks for: the path
// without its leading "/", percent-decoded, with one trailing "/" removed.
// folderOnly reports that trailing "/", which only a directory may match.
func Candidate(path string) (name string, folderOnly bool, err error) {
	name, err = url.PathUnescape(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	name, folderOnly = strings.CutSuffix(name, "/")

	switch {
	case strings.Contains(name, ".."),
		strings.ContainsRune(name, 0),
		strings.HasPrefix(name, "/"),
		strings.HasPrefix(name, `\`),
		filepath.IsAbs(name),
		filepath.VolumeName(name) != "":
		return "", false, fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	return name, folderOnly, nil
}

func (resolver *Resolver) serveFile(ctx context.Context, req *http.Request, name string) (*http.Response, bool) {
	ctx, cancel := resolver.withTimeout(ctx)
	defer cancel()

	content, err := resolver.Filesystem.ReadFile(ctx, name)
	if err != nil {
		if errors.Is(err, filesystem.ErrFileNotFound) {
			return nil, false
		}
		resolver.Logger.ErrorContext(ctx, "failed to read file", "name", name, "error", err)
		return textResponse(req, http.StatusInternalServerError), true
	}

	if !utf8.Valid(content) {
		resolver.Logger.WarnContext(ctx, "refused to serve file", "name", name, "error", ErrNotText)
		return textResponse(req, http.StatusInternalServerError), true
	}

	return http.NewResponse(req.Version, http.ContentTypeTextPlain, http.StatusOK, string(content)), true
}

func (resolver *Resolver) serveDirectory(ctx context.Context, req *http.Request, name string) (*http.Response, bool) {
	entries, err := resolver.list(ctx, name)
	if err != nil {
		if errors.Is(err, filesystem.ErrDirectoryNotFound) || errors.Is(err, filesystem.ErrNotDirectory) {
			return nil, false
		}
		resolver.Logger.ErrorContext(ctx, "failed to list directory", "name", name, "error", err)
		return textResponse(req, http.StatusInternalServerError), true
	}

	return resolver.render(ctx, req, "/"+name, entries), true
}

func (resolver *Resolver) render(ctx context.Context, req *http.Request, dir string, entries []filesystem.Entry) *http.Response {
	body, err := Render(dir, entries)
	if err != nil {
		resolver.Logger.ErrorContext(ctx, "failed to render listing", "dir", dir, "error", err)
		return textResponse(req, http.StatusInternalServerError)
	}

	return http.NewResponse(req.Version, http.ContentTypeTextHTML, http.StatusOK, body)
}

func (resolver *Resolver) list(ctx context.Context, name string) ([]filesystem.Entry, error) {
	ctx, cancel := resolver.withTimeout(ctx)
	defer cancel()

	return resolver.Filesystem.ListDirectory(ctx, name)
}

func (resolver *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if resolver.IOTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, resolver.IOTimeout)
}

func textResponse(req *http.Request, status http.StatusCode) *http.Response {
	return http.NewResponse(req.Version, http.ContentTypeTextPlain, status, status.Text())
}
