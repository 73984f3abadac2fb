package captation

import "time"

const (
	StatusPending       = "pending"
	StatusToSend        = "to_send"
	StatusAccepted      = "accepted"
	StatusRejected      = "rejected"
	StatusInProgress    = "in_progress"
	StatusPaid          = "paid"
	StatusContactNoSite = "contact_no_site"
)

var validStatuses = map[string]struct{}{
	StatusPending:       {},
	StatusToSend:        {},
	StatusAccepted:      {},
	StatusRejected:      {},
	StatusInProgress:    {},
	StatusPaid:          {},
	StatusContactNoSite: {},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

// ListingEntry is one record of an external business-directory export.
type ListingEntry struct {
	Name             string   `json:"name"`
	Category         string   `json:"category,omitempty"`
	Address          string   `json:"address,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	PhoneUnformatted string   `json:"phoneUnformatted,omitempty"`
	Website          string   `json:"website,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	ReviewsCount     *int     `json:"reviewsCount,omitempty"`
	URL              string   `json:"url,omitempty"`
	ScrapedAt        string   `json:"scrapedAt,omitempty"`
}

type ParsedAddress struct {
	City              string `json:"city"`
	StateAbbreviation string `json:"stateAbbreviation"`
	StateName         string `json:"stateName"`
	OriginalAddress   string `json:"originalAddress"`
}

type ParsedFields struct {
	CompanyName        string   `json:"companyName"`
	Phone              string   `json:"phone,omitempty"`
	WebsiteURL         string   `json:"websiteUrl,omitempty"`
	ContactLink        string   `json:"contactLink,omitempty"`
	Category           string   `json:"category,omitempty"`
	City               string   `json:"city,omitempty"`
	State              string   `json:"state,omitempty"`
	Notes              string   `json:"notes,omitempty"`
	GoogleRating       *float64 `json:"googleRating,omitempty"`
	GoogleReviewsCount *int     `json:"googleReviewsCount,omitempty"`
	GoogleMapsURL      string   `json:"googleMapsUrl,omitempty"`
}

// PreviewItem is the reviewable form of a ListingEntry. It is never stored.
type PreviewItem struct {
	Index       int          `json:"index"`
	Original    ListingEntry `json:"original"`
	Parsed      ParsedFields `json:"parsed"`
	IsDuplicate bool         `json:"isDuplicate"`
	Error       string       `json:"error,omitempty"`
}

type State struct {
	ID           string `bson:"_id,omitempty" json:"id"`
	Name         string `bson:"name" json:"name"`
	Abbreviation string `bson:"abbreviation" json:"abbreviation"`
}

type City struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	Name       string    `bson:"name" json:"name"`
	NameKey    string    `bson:"name_key" json:"-"`
	StateID    string    `bson:"state_id" json:"state_id"`
	Population *int      `bson:"population" json:"population"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

type Category struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	NameKey     string    `bson:"name_key" json:"-"`
	Description string    `bson:"description" json:"description"`
	Color       string    `bson:"color" json:"color"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Site is a business lead tracked through the outreach pipeline.
type Site struct {
	ID                 string    `bson:"_id,omitempty" json:"id"`
	CompanyName        string    `bson:"company_name" json:"company_name"`
	NameKey            string    `bson:"name_key" json:"-"`
	CityID             string    `bson:"city_id" json:"city_id"`
	CategoryID         string    `bson:"category_id" json:"category_id"`
	Phone              string    `bson:"phone,omitempty" json:"phone,omitempty"`
	WebsiteURL         string    `bson:"website_url,omitempty" json:"website_url,omitempty"`
	ContactLink        string    `bson:"contact_link,omitempty" json:"contact_link,omitempty"`
	Notes              string    `bson:"notes,omitempty" json:"notes,omitempty"`
	ProposalStatus     string    `bson:"proposal_status" json:"proposal_status"`
	GoogleRating       *float64  `bson:"google_rating,omitempty" json:"google_rating,omitempty"`
	GoogleReviewsCount *int      `bson:"google_reviews_count,omitempty" json:"google_reviews_count,omitempty"`
	GoogleMapsURL      string    `bson:"google_maps_url,omitempty" json:"google_maps_url,omitempty"`
	CreatedAt          time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at" json:"updated_at"`
}

// SiteUpdate carries the editable CRM fields; nil fields are left untouched.
type SiteUpdate struct {
	ProposalStatus *string
	Phone          *string
	WebsiteURL     *string
	ContactLink    *string
	Notes          *string
	CategoryID     *string
	UpdatedAt      time.Time
}

type SiteFilter struct {
	Status     string
	CityID     string
	CategoryID string
	Search     string
}

type UpdateSiteRequest struct {
	Phone       *string `json:"phone" validate:"omitempty,max=20"`
	WebsiteURL  *string `json:"website_url" validate:"omitempty,max=500"`
	ContactLink *string `json:"contact_link" validate:"omitempty,max=500"`
	Notes       *string `json:"notes" validate:"omitempty,max=5000"`
	CategoryID  *string `json:"category_id"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=pending to_send accepted rejected in_progress paid contact_no_site"`
}

type ImportRequest struct {
	Items             []PreviewItem `json:"items" validate:"required,min=1,max=500"`
	DefaultCategoryID string        `json:"default_category_id"`
}
