package models

// OrderRequest is the public order form payload. The three variant fields
// are mutually exclusive and must agree with ServiceType.
type OrderRequest struct {
	FirstName string   `json:"firstName" validate:"required,max=100"`
	LastName  string   `json:"lastName" validate:"required,max=100"`
	Email     string   `json:"email" validate:"required,email"`
	Phone     string   `json:"phone" validate:"required,phone"`
	Address   string   `json:"address" validate:"max=300"`
	Street    string   `json:"street" validate:"max=200"`
	City      string   `json:"city" validate:"max=100"`
	Zip       string   `json:"zip" validate:"max=20"`
	Country   string   `json:"country" validate:"max=100"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`

	ServiceType      string `json:"serviceType" validate:"required,oneof=containers excavators constructions"`
	ContainerType    string `json:"containerType" validate:"max=64"`
	ExcavatorType    string `json:"excavatorType" validate:"max=64"`
	ConstructionType string `json:"constructionType" validate:"max=64"`
	// AdditionalUnits are further catalog ids of the same service type
	// booked in the same submission.
	AdditionalUnits []string `json:"additionalUnits" validate:"max=5,dive,required,max=64"`

	OrderDate       string `json:"orderDate" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"omitempty,datetime=15:04"`
	EndTime         string `json:"endTime" validate:"omitempty,datetime=15:04"`
	EndDate         string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	ReservationType string `json:"reservationType" validate:"omitempty,oneof=time days weeks months"`

	Message string `json:"message" validate:"max=4000"`
}

// WorkApplicationRequest is the careers form payload.
type WorkApplicationRequest struct {
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,phone"`
	Position   string `json:"position" validate:"required,max=100"`
	Experience string `json:"experience" validate:"max=4000"`
	Message    string `json:"message" validate:"max=4000"`
}
