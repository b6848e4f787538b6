package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
)

const (
	MinRating = api.MinRating
	MaxRating = api.MaxRating
)

// DateLayout is the wire and storage format of an evaluation date.
const DateLayout = "2006-01-02"

var ErrCorruptIdentity = errors.New("evaluation marked synced without a server id")

// Identity tells where an evaluation stands relative to the server.
// It is one of Pending, PendingUpdate or Synced.
type Identity interface {
	isIdentity()
}

// Pending is a record that has never reached the server.
type Pending struct{}

// PendingUpdate is a previously synced record with a local edit waiting to
// travel as an update.
type PendingUpdate struct {
	ServerID int64
}

// Synced is a record whose latest state is on the server.
type Synced struct {
	ServerID int64
}

func (Pending) isIdentity()       {}
func (PendingUpdate) isIdentity() {}
func (Synced) isIdentity()        {}

// IdentityFromColumns rebuilds the identity from its stored form.
func IdentityFromColumns(synced bool, serverID int64, hasServerID bool) (Identity, error) {
	switch {
	case synced && !hasServerID:
		return nil, ErrCorruptIdentity
	case synced:
		return Synced{ServerID: serverID}, nil
	case hasServerID:
		return PendingUpdate{ServerID: serverID}, nil
	default:
		return Pending{}, nil
	}
}

// IdentityColumns is the inverse of IdentityFromColumns.
func IdentityColumns(id Identity) (synced bool, serverID int64, hasServerID bool) {
	switch v := id.(type) {
	case Synced:
		return true, v.ServerID, true
	case PendingUpdate:
		return false, v.ServerID, true
	case Pending:
		return false, 0, false
	default:
		panic(fmt.Sprintf("unknown identity %T", id))
	}
}

// Item results travel to the server unchanged.
type (
	ItemResult    = api.ItemResult
	SubItemRating = api.SubItemRating
)

// Evaluation is one inspection record for a location on a given date.
type Evaluation struct {
	ClientID string
	Identity Identity

	LocationID          int64
	EvaluatorID         int64
	CompanyID           int64
	ChecklistTemplateID int64
	EvaluationDate      time.Time
	Items               []ItemResult
	Notes               string

	// Snapshot of reference display fields taken when the record was written.
	LocationName  string
	EvaluatorName string
	CompanyName   string
	TemplateName  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServerID returns the server identifier if one is known.
func (e *Evaluation) ServerID() (int64, bool) {
	_, id, ok := IdentityColumns(e.Identity)
	return id, ok
}

// Synced reports whether the latest local state is on the server.
func (e *Evaluation) Synced() bool {
	_, ok := e.Identity.(Synced)
	return ok
}

// EvaluationFilter narrows evaluation queries. Zero fields are ignored;
// From and To are inclusive dates.
type EvaluationFilter struct {
	LocationID  int64
	EvaluatorID int64
	From        time.Time
	To          time.Time
	OnlySynced  bool
	OnlyPending bool
}

// Payload renders the record as the server expects it.
func (e *Evaluation) Payload() api.EvaluationPayload {
	items := e.Items
	if items == nil {
		items = []ItemResult{}
	}
	return api.EvaluationPayload{
		ClientID:            e.ClientID,
		LocationID:          e.LocationID,
		EvaluatorID:         e.EvaluatorID,
		CompanyID:           e.CompanyID,
		ChecklistTemplateID: e.ChecklistTemplateID,
		EvaluationDate:      e.EvaluationDate.Format(DateLayout),
		Items:               items,
		Notes:               e.Notes,
	}
}
