// Package logs reads nemoship log files for the CLI.
//
// Last returns the trailing lines of a file together with the offset where
// reading stopped; Follow polls from an offset and emits lines as they are
// appended, restarting from the top when the file is truncated.
package logs
