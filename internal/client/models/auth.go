package models

import "github.com/dmitrijs2005/inspectsync/internal/api"

// CurrentUser is the session snapshot returned by the server at login.
type CurrentUser = api.User

// AuthMaterial is the single active login of this installation.
type AuthMaterial struct {
	Token       string
	CurrentUser CurrentUser
	Preferences map[string][]byte
}
