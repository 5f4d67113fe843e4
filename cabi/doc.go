// Package cabi is the pure Go half of the C interface to the template engine.
//
// It holds everything the exported C functions need except C memory itself:
// handle tables mapping the inner pointers of mj_env and mj_value to Go
// objects, the fill-then-render Value container, the thread-safe Env store,
// the render entry points and the flattening of engine errors into
// {code, message} pairs.
//
// Broken caller contracts (null or freed handles, invalid UTF-8, empty keys,
// shape mismatches, unknown enum numbers) panic with a ContractViolation.
// Everything a well-behaved caller can trigger is reported as an *Error.
package cabi
