// Package models defines the records kept in the client's local store:
// evaluations, sync queue entries, reference entities and auth material.
package models
