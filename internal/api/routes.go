package api

const (
	PathPing               = "/ping"
	PathLogin              = "/auth/login"
	PathEvaluations        = "/evaluations"
	PathLocations          = "/locations"
	PathUsers              = "/users"
	PathCompanies          = "/companies"
	PathChecklistTemplates = "/checklist-templates"
	PathExports            = "/exports"
)

// Query parameters of GET /evaluations.
const (
	ParamFrom   = "from"
	ParamTo     = "to"
	ParamOffset = "offset"
	ParamLimit  = "limit"
)

// MaxPageSize caps the limit parameter of paged listings.
const MaxPageSize = 1000
