// Package database provides the PostgreSQL connection pool backing the
// credential store.
//
// The dashboard persists the browser session's key/value storage in a
// local_storage table; streaming clients running beside it read the access
// token from there instead of a file.
package database
