package download

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/require"

	"github.com/ytget/mf-downloader/internal/platform"
)

const (
	shareHost    = "www.mediafire.test"
	downloadHost = "download1.mediafire.test"
	sessionName  = "mf_session"
	sessionValue = "confirmed"
)

// hostRewriter sends every request to the test server while keeping the
// original host, so handlers can route on r.Host and cookies stay per domain.
type hostRewriter struct {
	target *url.URL
	base   http.RoundTripper
}

func (h hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = h.target.Scheme
	r.URL.Host = h.target.Host
	r.Host = req.URL.Host

	resp, err := h.base.RoundTrip(r)
	if resp != nil {
		resp.Request = req
	}
	return resp, err
}

// newShareServer emulates a file host: share pages on shareHost link into
// downloadHost, which only serves files to clients holding the page's cookie.
func newShareServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Host + r.URL.Path {
		case shareHost + "/file/direct":
			w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
			w.Header().Set("Content-Length", strconv.Itoa(len(reportBody)))
			w.Write([]byte(reportBody))

		case shareHost + "/file/page":
			http.SetCookie(w, &http.Cookie{Name: sessionName, Value: sessionValue, Domain: "mediafire.test", Path: "/"})
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, "<html>\n<body>\n<a class=\"input\" href=\"http://%s/abc/archive.zip\">Download</a>\n</body>\n</html>\n", downloadHost)

		case downloadHost + "/abc/archive.zip":
			if c, err := r.Cookie(sessionName); err != nil || c.Value != sessionValue {
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprint(w, "<html><body>Session expired</body></html>")
				return
			}
			w.Header().Set("Content-Disposition", "attachment")
			w.Write([]byte(archiveBody))

		case shareHost + "/file/private":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body><a href=\"https://www.mediafire.test/login\">Log in</a></body></html>")

		case shareHost + "/file/loop", downloadHost + "/loop":
			fmt.Fprintf(w, "<a href=\"http://%s/loop\">again</a>", downloadHost)

		case shareHost + "/file/truncated":
			w.Header().Set("Content-Disposition", `attachment; filename="broken.bin"`)
			w.Header().Set("Content-Length", "100")
			w.Write([]byte("only ten b"))

		case shareHost + "/file/unknown-size":
			w.Header().Set("Content-Disposition", `attachment; filename="stream.txt"`)
			w.(http.Flusher).Flush()
			w.Write([]byte(streamBody))

		case shareHost + "/file/blank-header.bin":
			w.Header()["Content-Disposition"] = []string{""}
			w.Write([]byte(streamBody))

		case shareHost + "/file/user-agent":
			w.Header().Set("Content-Disposition", `attachment; filename="ua.txt"`)
			w.Write([]byte(r.UserAgent()))

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

const (
	reportBody  = "%PDF-1.4\nfake report body\n%%EOF\n"
	archiveBody = "PK\x03\x04 archive contents"
	streamBody  = "streamed without a length"
)

func shareURL(path string) string {
	return "http://" + shareHost + path
}

func newTestLogger() (*log.Logger, *memory.Handler) {
	h := memory.New()
	return &log.Logger{Handler: h, Level: log.DebugLevel}, h
}

func newTestFetcher(t *testing.T, srv *httptest.Server, fs billy.Filesystem, opts Options) *Fetcher {
	t.Helper()

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	opts.Transport = hostRewriter{target: target, base: srv.Client().Transport}
	if opts.Logger == nil {
		opts.Logger, _ = newTestLogger()
	}
	return NewFetcher(fs, opts)
}

// listFiles returns the regular files in dir, sorted
func listFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

func requireNoTempFiles(t *testing.T, dir string) {
	t.Helper()

	temps, err := platform.FindTempFiles(dir)
	require.NoError(t, err)
	require.Empty(t, temps, "temp files left in %s", dir)
	matches, err := filepath.Glob(filepath.Join(dir, "*"+platform.TempFileExtension))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func newOutputFS(t *testing.T) (billy.Filesystem, string) {
	t.Helper()
	dir := t.TempDir()
	return osfs.New(dir), dir
}
