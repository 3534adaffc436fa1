// Package urlparts decomposes classification labels into the
// (scheme, host, path) columns of the classifications table.
//
// Decomposition is permissive and never fails: labels that are not
// absolute URLs yield an empty scheme and a missing host, and labels the
// standard parser rejects are split leniently following the generic
// RFC 3986 layout.
package urlparts
