// Package evaluations persists evaluation records in the client's SQLite store.
package evaluations
