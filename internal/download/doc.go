// Package download implements the share-link download pipeline. A Fetcher
// follows confirmation pages until the host serves the file itself, then streams
// it into a temp file inside the output folder and renames it into place. The
// Service runs a list of URLs through a Fetcher one at a time and records every
// failure in the output folder's error log.
package download
