// Package cli translates command-line arguments into application options.
package cli
