// Package httputil holds the JSON request/response helpers shared by
// every API handler. Handlers never touch http.ResponseWriter directly;
// routing through these helpers keeps the error envelope and content
// type uniform across the surface.
package httputil
