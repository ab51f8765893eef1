package browse

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/freekieb7/foldserve/filesystem"
	"github.com/freekieb7/foldserve/http"
	"github.com/freekieb7/foldserve/test"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestResolver serves a root holding a.txt (5 bytes) and sub/ with one
// file in it.
func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "inner.txt"), []byte("inner"), 0644); err != nil {
		t.Fatal(err)
	}

	fs, err := filesystem.NewLocalFileSystem(root)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fs.Close() })

	return NewResolver(fs, time.Second, discard), root
}

func request(path string) *http.Request {
	var req http.Request
	req.Reset()
	req.Path = path
	return &req
}

func rootListing(t *testing.T, resolver *Resolver) []filesystem.Entry {
	t.Helper()

	listing, err := resolver.Filesystem.ListDirectory(context.Background(), ".")
	if err != nil {
		t.Fatal(err)
	}
	return listing
}

func TestResolveRoot(t *testing.T) {
	resolver, _ := newTestResolver(t)
	listing := rootListing(t, resolver)

	res, found := resolver.Resolve(context.Background(), request("/"), listing)
	test.AssertTrue(t, found, "root should always resolve")

	expected, err := Render("/", listing)
	test.AssertNoError(t, err)
	test.AssertEqual(t, http.StatusOK, res.Status)
	test.AssertEqual(t, http.ContentTypeTextHTML, res.ContentType)
	test.AssertEqual(t, expected, res.Body)
}

func TestResolveRootEmptyListing(t *testing.T) {
	resolver, _ := newTestResolver(t)

	res, found := resolver.Resolve(context.Background(), request("/"), nil)
	test.AssertTrue(t, found, "root should always resolve")

	expected, _ := Render("/", nil)
	test.AssertEqual(t, http.StatusOK, res.Status)
	test.AssertEqual(t, expected, res.Body)
}

func TestResolveFile(t *testing.T) {
	resolver, root := newTestResolver(t)

	content := "line one\nline two ✓\n"
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	res, found := resolver.Resolve(context.Background(), request("/notes.txt"), rootListing(t, resolver))
	test.AssertTrue(t, found, "file should resolve")
	test.AssertEqual(t, http.StatusOK, res.Status)
	test.AssertEqual(t, http.ContentTypeTextPlain, res.ContentType)
	test.AssertEqual(t, content, res.Body)
}

func TestResolveDirectory(t *testing.T) {
	resolver, _ := newTestResolver(t)

	res, found := resolver.Resolve(context.Background(), request("/sub"), rootListing(t, resolver))
	test.AssertTrue(t, found, "directory should resolve")

	entries, err := resolver.Filesystem.ListDirectory(context.Background(), "sub")
	test.AssertNoError(t, err)
	expected, _ := Render("/sub", entries)
	test.AssertEqual(t, http.StatusOK, res.Status)
	test.AssertEqual(t, expected, res.Body)

	res, found = resolver.Resolve(context.Background(), request("/sub/"), rootListing(t, resolver))
	test.AssertTrue(t, found, "trailing slash should resolve")
	test.AssertEqual(t, expected, res.Body)
}

func TestResolveDirectoryIsScannedEachTime(t *testing.T) {
	resolver, root := newTestResolver(t)
	listing := rootListing(t, resolver)

	first, _ := resolver.Resolve(context.Background(), request("/sub"), listing)

	if err := os.WriteFile(filepath.Join(root, "sub", "later.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	second, _ := resolver.Resolve(context.Background(), request("/sub"), listing)
	test.AssertTrue(t, first.Body != second.Body, "directory changes should be visible")
}

func TestResolveNotFound(t *testing.T) {
	resolver, _ := newTestResolver(t)
	listing := rootListing(t, resolver)

	for _, path := range []string{"/missing", "/sub/inner.txt", "/A.TXT", "/a", ""} {
		res, found := resolver.Resolve(context.Background(), request(path), listing)
		test.AssertTrue(t, !found, "path should not resolve: "+path)
		test.AssertTrue(t, res == nil, "no response expected for: "+path)
	}
}

func TestResolveVanishedEntry(t *testing.T) {
	resolver, root := newTestResolver(t)
	listing := rootListing(t, resolver)

	if err := os.Remove(filepath.Join(root, "a.txt")); err != nil {
		t.Fatal(err)
	}

	_, found := resolver.Resolve(context.Background(), request("/a.txt"), listing)
	test.AssertTrue(t, !found, "removed file should not resolve")
}

func TestResolveNonTextFile(t *testing.T) {
	resolver, root := newTestResolver(t)

	if err := os.WriteFile(filepath.Join(root, "image.bin"), []byte{0xff, 0xd8, 0xff, 0x00}, 0644); err != nil {
		t.Fatal(err)
	}

	res, found := resolver.Resolve(context.Background(), request("/image.bin"), rootListing(t, resolver))
	test.AssertTrue(t, found, "binary file should resolve to an error")
	test.AssertEqual(t, http.StatusInternalServerError, res.Status)
}

func TestResolvePercentEncodedName(t *testing.T) {
	resolver, root := newTestResolver(t)

	if err := os.WriteFile(filepath.Join(root, "my notes.txt"), []byte("spaced"), 0644); err != nil {
		t.Fatal(err)
	}

	res, found := resolver.Resolve(context.Background(), request("/my%20notes.txt"), rootListing(t, resolver))
	test.AssertTrue(t, found, "encoded name should resolve")
	test.AssertEqual(t, "spaced", res.Body)
}

// untouchable fails the test on any filesystem access.
type untouchable struct {
	t *testing.T
}

func (fs untouchable) ReadFile(ctx context.Context, path string) ([]byte, error) {
	fs.t.Errorf("ReadFile(%q) must not be called", path)
	return nil, nil
}

func (fs untouchable) ListDirectory(ctx context.Context, path string) ([]filesystem.Entry, error) {
	fs.t.Errorf("ListDirectory(%q) must not be called", path)
	return nil, nil
}

func (fs untouchable) GetAbsolutePath(path string) (string, error) {
	return path, nil
}

func (fs untouchable) Close() error {
	return nil
}

func TestResolveRejectsTraversal(t *testing.T) {
	resolver := NewResolver(untouchable{t}, time.Second, discard)

	paths := []string{
		"/../etc/passwd",
		"/..",
		"/%2e%2e/etc/passwd",
		"/..%2fetc%2fpasswd",
		"//etc/passwd",
		"/a%00b",
		"/%zz",
	}

	for _, path := range paths {
		// a hostile listing must not matter, the name is rejected first
		listing := []filesystem.Entry{
			{Name: "../etc/passwd", IsFile: true},
			{Name: "..", IsFile: false},
			{Name: "/etc/passwd", IsFile: true},
			{Name: "a\x00b", IsFile: true},
		}

		res, found := resolver.Resolve(context.Background(), request(path), listing)
		test.AssertTrue(t, found, "unsafe path should be answered: "+path)
		test.AssertEqual(t, http.StatusBadRequest, res.Status)
	}
}

func TestCandidate(t *testing.T) {
	valid := []struct {
		path       string
		name       string
		folderOnly bool
	}{
		{"/a.txt", "a.txt", false},
		{"/sub/", "sub", true},
		{"/my%20notes.txt", "my notes.txt", false},
		{"/what%3F.txt", "what?.txt", false},
		{"/a/b", "a/b", false},
		{"", "", false},
	}
	for _, tc := range valid {
		name, folderOnly, err := Candidate(tc.path)
		test.AssertNoError(t, err)
		test.AssertEqual(t, tc.name, name)
		test.AssertEqual(t, tc.folderOnly, folderOnly)
	}

	for _, path := range []string{"/../x", "/x/..", "/%2E%2E", "//abs", "/nul%00", "/bad%"} {
		_, _, err := Candidate(path)
		test.AssertErrorIs(t, err, ErrUnsafePath)
	}
}

func TestResolveTrailingSlashOnFile(t *testing.T) {
	resolver, _ := newTestResolver(t)

	res, found := resolver.Resolve(context.Background(), request("/a.txt/"), rootListing(t, resolver))
	test.AssertTrue(t, !found, "a file should not match a folder path")
	test.AssertTrue(t, res == nil, "no response expected")
}

func newRequestCtx(path string) *http.RequestCtx {
	ctx := http.NewRequestCtx()
	ctx.Logger = discard
	ctx.Request.Reset()
	ctx.Request.Path = path
	return ctx
}

// Root holds a.txt (5 bytes) and sub/. Every request is handled like a fresh
// connection.
func TestHandle(t *testing.T) {
	resolver, _ := newTestResolver(t)

	ctx := newRequestCtx("/")
	resolver.Handle(ctx)
	test.AssertEqual(t, http.StatusOK, ctx.Response.Status)
	doc := parseListing(t, ctx.Response.Body)
	test.AssertEqual(t, 2, doc.Find("table tr:has(td)").Length())

	ctx = newRequestCtx("/a.txt")
	resolver.Handle(ctx)
	test.AssertEqual(t, http.StatusOK, ctx.Response.Status)
	test.AssertEqual(t, "hello", ctx.Response.Body)

	ctx = newRequestCtx("/missing")
	resolver.Handle(ctx)
	test.AssertEqual(t, http.StatusNotFound, ctx.Response.Status)
	test.AssertEqual(t, "Not Found", ctx.Response.Body)

	ctx = newRequestCtx("/sub")
	resolver.Handle(ctx)
	test.AssertEqual(t, http.StatusOK, ctx.Response.Status)
	doc = parseListing(t, ctx.Response.Body)
	test.AssertEqual(t, 1, doc.Find("table tr:has(td)").Length())
	test.AssertEqual(t, "inner.txt", doc.Find("table tr:has(td) a").Text())
}

func TestHandleRootRescanned(t *testing.T) {
	resolver, root := newTestResolver(t)

	ctx := newRequestCtx("/new.txt")
	resolver.Handle(ctx)
	test.AssertEqual(t, http.StatusNotFound, ctx.Response.Status)

	if err := os.WriteFile(filepath.Join(root, "new.txt"), []byte("fresh"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx = newRequestCtx("/new.txt")
	resolver.Handle(ctx)
	test.AssertEqual(t, http.StatusOK, ctx.Response.Status)
	test.AssertEqual(t, "fresh", ctx.Response.Body)
}

func TestHandleRootUnavailable(t *testing.T) {
	root := t.TempDir()
	fs, err := filesystem.NewLocalFileSystem(root)
	if err != nil {
		t.Fatal(err)
	}
	fs.Close()

	resolver := NewResolver(fs, time.Second, discard)
	ctx := newRequestCtx("/")
	resolver.Handle(ctx)
	test.AssertEqual(t, http.StatusInternalServerError, ctx.Response.Status)
}
