// Command libminijinja builds the template engine as a C shared library:
//
//	go build -buildmode=c-shared -o libminijinja.so ./cmd/libminijinja
//
// The exported symbols are declared in include/minijinja.h. Every object
// handed to C (environments, values, errors, rendered strings and result
// structs) is allocated with malloc and must be released with the matching
// mj_*_free function. Breaking the calling contract aborts the process.
//
// Set MINIJINJA_LOG_LEVEL (debug, info, warn, error) to get log output on
// stderr, and MINIJINJA_LOG_FORMAT=json for structured records.
package main

func main() {}
