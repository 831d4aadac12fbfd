// Package httputil provides the JSON response and request helpers shared by
// the operator API handlers, so every endpoint answers with the same
// envelope and error shape.
package httputil
