package download

import (
	"html"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/ytget/mf-downloader/internal/platform"
)

const (
	headerContentDisposition = "Content-Disposition"
	headerUserAgent          = "User-Agent"

	// DefaultFileName is used when neither the header nor the URL yields a name
	DefaultFileName = "download"
)

var (
	// downloadLinkPattern matches links into the host's download sub-domain
	downloadLinkPattern = regexp.MustCompile(`href="((?:http|https)://download[^"]+)`)

	// quotedFilenamePattern is the fallback for headers mime cannot parse
	quotedFilenamePattern = regexp.MustCompile(`filename="(.*)"`)
)

// ExtractDownloadLink returns the first download sub-domain link in an HTML page,
// scanning it line by line.
func ExtractDownloadLink(page string) (string, bool) {
	for line := range strings.Lines(page) {
		m := downloadLinkPattern.FindStringSubmatch(line)
		if m != nil {
			return html.UnescapeString(m[1]), true
		}
	}
	return "", false
}

// isDirectFile reports whether a response carries the file itself.
// Presence of the header counts, even with an empty value.
func isDirectFile(header http.Header) bool {
	_, ok := header[http.CanonicalHeaderKey(headerContentDisposition)]
	return ok
}

// FileNameFromDisposition extracts the filename parameter of a Content-Disposition
// header. Unparseable headers are retried with a plain quoted-value match.
func FileNameFromDisposition(value string) (string, bool) {
	if value == "" {
		return "", false
	}

	var name string
	if _, params, err := mime.ParseMediaType(value); err == nil {
		name = params["filename"]
	}
	if name == "" {
		if m := quotedFilenamePattern.FindStringSubmatch(value); m != nil {
			name = m[1]
		}
	}

	name = platform.SanitizeFileName(name)
	return name, name != ""
}

// FileNameFromURL returns the last path segment of u
func FileNameFromURL(u *url.URL) string {
	if u == nil {
		return DefaultFileName
	}
	name := platform.SanitizeFileName(path.Base(u.Path))
	if name == "" {
		return DefaultFileName
	}
	return name
}

// outputName picks the file name for a direct-file response
func outputName(resp *http.Response) string {
	if name, ok := FileNameFromDisposition(resp.Header.Get(headerContentDisposition)); ok {
		return name
	}
	if resp.Request != nil {
		return FileNameFromURL(resp.Request.URL)
	}
	return DefaultFileName
}
