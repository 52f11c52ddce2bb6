package main

import "time"

// User holds an account plus profile fields. The username is the identity
// used everywhere else (follows, listings, messages), so it is unique and
// never changes after registration.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	Username   string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Password   string    `gorm:"not null" json:"-"`
	Email      string    `gorm:"not null" json:"email"`
	Location   string    `json:"location"`
	Role       string    `json:"role"`
	DOB        string    `gorm:"column:dob" json:"dob"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Follow is one edge of the follow graph: Who follows Whom. The composite
// primary key makes the relation a set, so repeated follows are no-ops.
type Follow struct {
	WhoUsername  string `gorm:"primaryKey;size:64" json:"who"`
	WhomUsername string `gorm:"primaryKey;size:64" json:"whom"`
}

func (Follow) TableName() string { return "follows" }

type Listing struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	OwnerUsername string         `gorm:"index;size:64;not null" json:"ownerUsername"`
	Title         string         `json:"title"`
	Make          string         `gorm:"index" json:"make"`
	Model         string         `json:"model"`
	Colour        string         `json:"colour"`
	FuelType      string         `json:"fuelType"`
	Registration  string         `json:"registration"`
	Description   string         `json:"description"`
	Location      string         `json:"location"`
	Year          *int           `json:"year"`
	Price         *float64       `gorm:"index" json:"price"`
	Mileage       *int           `json:"mileage"`
	EngineCap     *int           `gorm:"column:engine_capacity" json:"engineCapacity"`
	CO2Emissions  *int           `gorm:"column:co2_emissions" json:"co2Emissions"`
	QuickPost     bool           `json:"quickPost"`
	CreatedAt     time.Time      `gorm:"index" json:"createdAt"`
	Images        []ListingImage `gorm:"foreignKey:ListingID" json:"-"`
	Likes         []Like         `gorm:"foreignKey:ListingID" json:"-"`
	Comments      []Comment      `gorm:"foreignKey:ListingID" json:"-"`
}

type ListingImage struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	ListingID uint   `gorm:"index;not null" json:"-"`
	Path      string `json:"path"`
}

// Like is membership of a username in a listing's like set.
type Like struct {
	ListingID uint   `gorm:"primaryKey" json:"-"`
	Username  string `gorm:"primaryKey;size:64" json:"username"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ListingID uint      `gorm:"index;not null" json:"-"`
	Username  string    `gorm:"size:64;not null" json:"username"`
	Text      string    `gorm:"not null" json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Favourite is a per-user bookmark on a listing. At most one row per
// (username, listing) pair.
type Favourite struct {
	Username  string    `gorm:"primaryKey;size:64" json:"username"`
	ListingID uint      `gorm:"primaryKey" json:"listingId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is immutable once created; there is no edit or delete path.
type Message struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FromUsername string    `gorm:"index;size:64;not null" json:"from"`
	ToUsername   string    `gorm:"index;size:64;not null" json:"to"`
	Text         string    `gorm:"not null" json:"text"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
}

// ---- request payloads ----

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Location string `json:"location"`
	Role     string `json:"role"`
	DOB      string `json:"dob"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// createListingRequest leaves the numeric fields untyped: clients send them
// as strings or numbers interchangeably, so they are coerced after decoding
// and dropped when they do not parse.
type createListingRequest struct {
	Title        string   `json:"title"`
	Make         string   `json:"make"`
	Model        string   `json:"model"`
	Colour       string   `json:"colour"`
	FuelType     string   `json:"fuelType"`
	Registration string   `json:"registration"`
	Description  string   `json:"description"`
	Location     string   `json:"location"`
	Year         any      `json:"year"`
	Price        any      `json:"price"`
	Mileage      any      `json:"mileage"`
	EngineCap    any      `json:"engineCapacity"`
	CO2Emissions any      `json:"co2Emissions"`
	Images       []string `json:"images"`
	QuickPost    bool     `json:"quickPost"`
}

type followRequest struct {
	TargetUsername string `json:"targetUsername"`
}

type favouriteRequest struct {
	ListingID string `json:"listingId"`
}

type sendMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type vehicleLookupRequest struct {
	RegistrationNumber string `json:"registrationNumber"`
}

// ---- response shapes ----

type listingJSON struct {
	ID            uint      `json:"id"`
	OwnerUsername string    `json:"ownerUsername"`
	Title         string    `json:"title"`
	Make          string    `json:"make"`
	Model         string    `json:"model"`
	Colour        string    `json:"colour,omitempty"`
	FuelType      string    `json:"fuelType,omitempty"`
	Registration  string    `json:"registration,omitempty"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location"`
	Year          *int      `json:"year"`
	Price         *float64  `json:"price"`
	Mileage       *int      `json:"mileage"`
	EngineCap     *int      `json:"engineCapacity"`
	CO2Emissions  *int      `json:"co2Emissions"`
	QuickPost     bool      `json:"quickPost"`
	CreatedAt     time.Time `json:"createdAt"`
	Images        []string  `json:"images"`
	Likes         []string  `json:"likes"`
	Comments      []Comment `json:"comments"`
}

type conversationJSON struct {
	With        string    `json:"with"`
	LastMessage string    `json:"lastMessage"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
