package model

// TaskStatus represents the status of a single URL download
type TaskStatus string

const (
	// TaskStatusPending means the URL has been read but not attempted yet
	TaskStatusPending TaskStatus = "Pending"

	// TaskStatusDownloading means the link is being resolved or the file streamed to disk
	TaskStatusDownloading TaskStatus = "Downloading"

	// TaskStatusCompleted means the file was renamed into place
	TaskStatusCompleted TaskStatus = "Completed"

	// TaskStatusError means the URL failed and was written to the error log
	TaskStatusError TaskStatus = "Error"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive returns true if the task is in an active state
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusDownloading
}

// IsFinished returns true if the task is in a finished state (completed or error)
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusError
}
