// Package httputil provides shared HTTP plumbing: JSON response helpers
// and the generic middleware (request id, logging, recovery, body limits)
// that every route passes through before authentication.
package httputil
