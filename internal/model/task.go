package model

import (
	"fmt"
	"strings"
	"time"
)

// DownloadTask represents one URL of a batch and what happened to it
type DownloadTask struct {
	ID           string
	Index        int    // 1-based position in the input list
	URL          string // share link as read from input
	ResolvedURL  string // direct-file URL after confirmation pages
	Status       TaskStatus
	Hops         int    // requests issued to reach the file
	OutputPath   string // path to downloaded file
	ContentType  string // sniffed from the first bytes of the body
	BytesWritten int64
	TotalBytes   int64  // from Content-Length, -1 if unknown
	ErrorKind    string // error kind code if the task failed
	LastError    string // last error message if any
	StartedAt    time.Time
	FinishedAt   time.Time
}

// NewDownloadTask creates a pending task for the URL at the given 1-based index
func NewDownloadTask(id string, index int, url string) *DownloadTask {
	return &DownloadTask{
		ID:         id,
		Index:      index,
		URL:        url,
		Status:     TaskStatusPending,
		TotalBytes: -1,
	}
}

// ErrorLogLine returns the line recorded for this task in the error log
func (dt *DownloadTask) ErrorLogLine() string {
	return fmt.Sprintf("%d, %s\n", dt.Index, dt.URL)
}

// Elapsed returns how long the task ran, or zero if it never finished
func (dt *DownloadTask) Elapsed() time.Duration {
	if dt.StartedAt.IsZero() || dt.FinishedAt.IsZero() {
		return 0
	}
	return dt.FinishedAt.Sub(dt.StartedAt)
}

// GetDisplayTitle returns the output filename, or the URL if nothing was written
func (dt *DownloadTask) GetDisplayTitle() string {
	if dt.OutputPath != "" {
		// support both / and \ separators
		parts := strings.FieldsFunc(dt.OutputPath, func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			return parts[len(parts)-1]
		}
	}

	return dt.URL
}

// BatchReport aggregates the tasks of one batch run in input order
type BatchReport struct {
	Tasks        []*DownloadTask
	Succeeded    int
	Failed       int
	BytesWritten int64
}

// Add records a finished task
func (r *BatchReport) Add(task *DownloadTask) {
	r.Tasks = append(r.Tasks, task)
	if task.Status == TaskStatusCompleted {
		r.Succeeded++
		r.BytesWritten += task.BytesWritten
		return
	}
	r.Failed++
}

// HasFailures reports whether any URL of the batch failed
func (r *BatchReport) HasFailures() bool {
	return r.Failed > 0
}

// FailedTasks returns the failed tasks in input order
func (r *BatchReport) FailedTasks() []*DownloadTask {
	var failed []*DownloadTask
	for _, task := range r.Tasks {
		if task.Status != TaskStatusCompleted {
			failed = append(failed, task)
		}
	}
	return failed
}
