// Package platform contains the filesystem and input helpers the downloader
// needs around the network code: output folder creation, URL list parsing,
// file name sanitizing and temp file naming.
package platform
