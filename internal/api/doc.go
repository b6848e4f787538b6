// Package api holds the JSON documents exchanged between the field client and
// the server, plus the route paths both sides agree on.
package api
