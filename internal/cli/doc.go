// Package cli wires settings, the fetcher and the batch service into the
// command line entry point.
package cli
