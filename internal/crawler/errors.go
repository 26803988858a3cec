package crawler

import "errors"

// Failure taxonomy for crawl attempts. Only these three surface as a
// failed/blocked page state; field extraction and classification problems
// are absorbed below the orchestrator boundary.
var (
	// ErrPolicyDenied marks a robots.txt denial. Terminal, never retried.
	ErrPolicyDenied = errors.New("blocked by robots.txt")
	// ErrTransport marks a connection error, timeout, or oversized body.
	// Retried up to the ceiling, then terminal.
	ErrTransport = errors.New("transport failure")
	// ErrContentType marks a non-HTML response. Terminal; retrying cannot
	// change the content type.
	ErrContentType = errors.New("content type mismatch")
	// ErrParse marks an unparsable HTML body. Terminal, never retried.
	ErrParse = errors.New("html parse failure")
)
