package models

import "github.com/dmitrijs2005/inspectsync/internal/api"

// Reference entities are mirrored exactly as the server sends them.
type (
	Company           = api.Company
	Location          = api.Location
	User              = api.User
	ChecklistTemplate = api.ChecklistTemplate
	TemplateCategory  = api.TemplateCategory
)

// Reference is the set of entity types mirrored from the server.
type Reference interface {
	Company | Location | User | ChecklistTemplate
	Key() int64
}
