// Package cli implements the filekeeper command-line client.
//
// Usage:
//
//	filekeeper [-a url] [-token t] [-timeout d] [-c file.json] [-e file.env] <command> [args]
//
// Commands: register, login, upload, list, get, download, rename, delete.
// Passwords are read from the terminal without echo. login prints the bearer
// token; pass it back with -token or FILEKEEPER_TOKEN.
package cli
