package download

import (
	"context"

	"github.com/ytget/mf-downloader/internal/model"
)

// Downloader fetches a single URL into the output folder
type Downloader interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// Runner processes a list of URLs and reports the outcome of each
type Runner interface {
	SetUpdateCallback(func(*model.DownloadTask))
	Run(ctx context.Context, urls []string) (*model.BatchReport, error)
}
