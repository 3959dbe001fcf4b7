// Package api is a small HTTP client for the FileKeeper server API.
//
// Every call takes a context; authenticated calls send the bearer token the
// Client was built with (see WithToken). Non-2xx answers are returned as
// *Error carrying the status code and the server's "error" message.
package api
