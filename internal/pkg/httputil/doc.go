// Package httputil holds the JSON envelope helpers every API handler uses,
// so responses and error bodies look the same across endpoints.
package httputil
