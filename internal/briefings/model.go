package briefings

import "time"

const (
	StatusNew       = "new"
	StatusReviewing = "reviewing"
	StatusApproved  = "approved"
	StatusArchived  = "archived"

	ProjectLanding       = "landing_page"
	ProjectInstitutional = "institutional"
	ProjectEcommerce     = "ecommerce"
	ProjectSystem        = "system"
	ProjectRedesign      = "redesign"
)

var validStatuses = map[string]struct{}{
	StatusNew:       {},
	StatusReviewing: {},
	StatusApproved:  {},
	StatusArchived:  {},
}

var validProjectTypes = map[string]struct{}{
	ProjectLanding:       {},
	ProjectInstitutional: {},
	ProjectEcommerce:     {},
	ProjectSystem:        {},
	ProjectRedesign:      {},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

func IsValidProjectType(value string) bool {
	_, ok := validProjectTypes[value]
	return ok
}

// Briefing is a client intake form submitted from the public site.
type Briefing struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	Company        string    `bson:"company" json:"company"`
	ContactName    string    `bson:"contact_name" json:"contact_name"`
	Email          string    `bson:"email" json:"email"`
	Phone          string    `bson:"phone" json:"phone"`
	ProjectType    string    `bson:"project_type" json:"project_type"`
	BudgetRange    string    `bson:"budget_range,omitempty" json:"budget_range,omitempty"`
	Deadline       string    `bson:"deadline,omitempty" json:"deadline,omitempty"`
	Description    string    `bson:"description" json:"description"`
	ReferenceLinks []string  `bson:"reference_links,omitempty" json:"reference_links,omitempty"`
	AttachmentURLs []string  `bson:"attachment_urls,omitempty" json:"attachment_urls,omitempty"`
	Status         string    `bson:"status" json:"status"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	Company        string   `json:"company" validate:"required,max=200"`
	ContactName    string   `json:"contact_name" validate:"required,max=200"`
	Email          string   `json:"email" validate:"required,email"`
	Phone          string   `json:"phone" validate:"required,phone_br"`
	ProjectType    string   `json:"project_type" validate:"required,oneof=landing_page institutional ecommerce system redesign"`
	BudgetRange    string   `json:"budget_range" validate:"omitempty,max=100"`
	Deadline       string   `json:"deadline" validate:"omitempty,date"`
	Description    string   `json:"description" validate:"required,max=10000"`
	ReferenceLinks []string `json:"reference_links" validate:"omitempty,max=10,dive,url"`
	AttachmentURLs []string `json:"attachment_urls" validate:"omitempty,max=20,dive,url"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=new reviewing approved archived"`
}

type ListFilter struct {
	Status string
}
