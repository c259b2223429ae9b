package download

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a URL could not be downloaded
type ErrorKind string

const (
	// KindPermissionDenied means neither a file nor a download link was served;
	// usually the share link is not public.
	KindPermissionDenied ErrorKind = "PERMISSION_DENIED"

	// KindTooManyHops means confirmation pages kept linking onward past the hop limit.
	KindTooManyHops ErrorKind = "TOO_MANY_HOPS"

	// KindNetwork means a request failed or the response could not be read.
	KindNetwork ErrorKind = "NETWORK_ERROR"

	// KindIO means writing the temp file or renaming it into place failed.
	KindIO ErrorKind = "IO_ERROR"

	// KindInput means the URL list could not be read. It aborts the whole run.
	KindInput ErrorKind = "INPUT_ERROR"

	// KindInternal covers unexpected failures such as a recovered panic.
	KindInternal ErrorKind = "INTERNAL_ERROR"
)

// Sentinel errors, one per kind, for use with errors.Is
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrTooManyHops      = errors.New("too many hops")
	ErrNetwork          = errors.New("network error")
	ErrIO               = errors.New("i/o error")
	ErrInput            = errors.New("input error")
	ErrInternal         = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	KindPermissionDenied: ErrPermissionDenied,
	KindTooManyHops:      ErrTooManyHops,
	KindNetwork:          ErrNetwork,
	KindIO:               ErrIO,
	KindInput:            ErrInput,
	KindInternal:         ErrInternal,
}

// FetchError is returned for every failed URL
type FetchError struct {
	Kind ErrorKind
	URL  string // the URL as given by the caller, not the resolved one
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the kind
func (e *FetchError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

func newFetchError(kind ErrorKind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// KindOf returns the kind of err, or KindInternal if err is not a FetchError
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}
