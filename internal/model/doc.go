// Package model defines the data structures shared by the downloader: per-URL
// download tasks, their status enum, and the report produced by a batch run.
package model
