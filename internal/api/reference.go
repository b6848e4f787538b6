package api

type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Location struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"company_id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"company_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

type TemplateCategory struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

type ChecklistTemplate struct {
	ID         int64              `json:"id"`
	CompanyID  int64              `json:"company_id"`
	Name       string             `json:"name"`
	Categories []TemplateCategory `json:"categories"`
}

func (c Company) Key() int64           { return c.ID }
func (l Location) Key() int64          { return l.ID }
func (u User) Key() int64              { return u.ID }
func (t ChecklistTemplate) Key() int64 { return t.ID }
