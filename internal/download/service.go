package download

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"github.com/ytget/mf-downloader/internal/model"
	"github.com/ytget/mf-downloader/internal/platform"
)

const (
	// ErrorLogName is the failure log written into the output folder
	ErrorLogName = "error_log.txt"

	TaskIDPrefix = "task-"
)

var _ Runner = (*Service)(nil)

// Service runs a batch of URLs through a Downloader, one at a time
type Service struct {
	fetcher  Downloader
	fs       billy.Filesystem
	logger   log.Interface
	onUpdate func(*model.DownloadTask) // callback for task state changes
}

// NewService creates a new batch service writing its error log into fs
func NewService(fetcher Downloader, fs billy.Filesystem, logger log.Interface) *Service {
	if logger == nil {
		logger = log.Log
	}
	return &Service{
		fetcher: fetcher,
		fs:      fs,
		logger:  logger,
	}
}

// SetUpdateCallback sets the callback function for task updates
func (s *Service) SetUpdateCallback(callback func(*model.DownloadTask)) {
	s.onUpdate = callback
}

// Run downloads every URL in order. A failed URL is written to the error log as
// "<index>, <url>" and never stops the batch. The returned error is only set
// when the output folder or error log cannot be prepared, or ctx is cancelled.
func (s *Service) Run(ctx context.Context, urls []string) (*model.BatchReport, error) {
	if err := s.fs.MkdirAll(".", platform.DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	errorLog, err := s.fs.Create(ErrorLogName)
	if err != nil {
		return nil, fmt.Errorf("failed to create error log: %w", err)
	}
	defer errorLog.Close()

	report := &model.BatchReport{}
	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		task := model.NewDownloadTask(generateTaskID(), i+1, url)
		s.runTask(ctx, task)
		report.Add(task)

		if task.Status == model.TaskStatusCompleted {
			continue
		}
		if _, err := errorLog.Write([]byte(task.ErrorLogLine())); err != nil {
			s.logger.WithError(err).WithField("index", task.Index).Error("failed to write error log")
		}
	}

	return report, nil
}

// runTask fetches one URL and records the outcome on task
func (s *Service) runTask(ctx context.Context, task *model.DownloadTask) {
	task.Status = model.TaskStatusDownloading
	task.StartedAt = time.Now()
	s.notifyUpdate(task)

	result, err := s.safeFetch(ctx, task.URL)
	if err == nil && (result == nil || result.Path == "") {
		err = newFetchError(KindInternal, task.URL, errors.New("download finished without an output path"))
	}
	task.FinishedAt = time.Now()

	if err != nil {
		task.Status = model.TaskStatusError
		task.ErrorKind = string(KindOf(err))
		task.LastError = err.Error()
		s.logger.WithFields(log.Fields{
			"index": task.Index,
			"url":   task.URL,
			"kind":  task.ErrorKind,
		}).WithError(err).Error("error downloading file")
		s.notifyUpdate(task)
		return
	}

	task.Status = model.TaskStatusCompleted
	task.OutputPath = result.Path
	task.ResolvedURL = result.ResolvedURL
	task.ContentType = result.ContentType
	task.BytesWritten = result.Bytes
	task.TotalBytes = result.Total
	task.Hops = result.Hops
	s.logger.WithFields(log.Fields{
		"index": task.Index,
		"path":  task.OutputPath,
		"type":  task.ContentType,
	}).Debug("saved")
	s.notifyUpdate(task)
}

// safeFetch turns a panic in the fetch path into a failed URL
func (s *Service) safeFetch(ctx context.Context, url string) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = newFetchError(KindInternal, url, fmt.Errorf("panic: %v", r))
		}
	}()
	return s.fetcher.Fetch(ctx, url)
}

// notifyUpdate calls the update callback if set
func (s *Service) notifyUpdate(task *model.DownloadTask) {
	if s.onUpdate != nil {
		s.onUpdate(task)
	}
}

// generateTaskID generates a unique task ID
func generateTaskID() string {
	return TaskIDPrefix + uuid.NewString()
}
