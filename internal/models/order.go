package models

import (
	"fmt"
	"strings"
	"time"
)

type ServiceType string

const (
	ServiceContainers    ServiceType = "containers"
	ServiceExcavators    ServiceType = "excavators"
	ServiceConstructions ServiceType = "constructions"
)

func ParseServiceType(raw string) (ServiceType, error) {
	switch st := ServiceType(strings.ToLower(strings.TrimSpace(raw))); st {
	case ServiceContainers, ServiceExcavators, ServiceConstructions:
		return st, nil
	default:
		return "", fmt.Errorf("unknown service type %q", raw)
	}
}

// Bookable reports whether the service reserves a discrete equipment unit.
func (st ServiceType) Bookable() bool {
	return st == ServiceContainers || st == ServiceExcavators
}

// ServiceSelection is the chosen service together with its catalog variant:
// a container size, an excavator model or a construction service id.
type ServiceSelection struct {
	Type    ServiceType `json:"serviceType"`
	Variant string      `json:"variant"`
}

func ContainerSelection(sizeID string) ServiceSelection {
	return ServiceSelection{Type: ServiceContainers, Variant: sizeID}
}

func ExcavatorSelection(modelID string) ServiceSelection {
	return ServiceSelection{Type: ServiceExcavators, Variant: modelID}
}

func ConstructionSelection(serviceID string) ServiceSelection {
	return ServiceSelection{Type: ServiceConstructions, Variant: serviceID}
}

// ContainerType returns the variant when the selection is a container.
func (s ServiceSelection) ContainerType() string {
	if s.Type == ServiceContainers {
		return s.Variant
	}
	return ""
}

func (s ServiceSelection) ExcavatorType() string {
	if s.Type == ServiceExcavators {
		return s.Variant
	}
	return ""
}

func (s ServiceSelection) ConstructionType() string {
	if s.Type == ServiceConstructions {
		return s.Variant
	}
	return ""
}

// Location is the delivery address. Every field is optional.
type Location struct {
	Address   string   `json:"address,omitempty"`
	Street    string   `json:"street,omitempty"`
	City      string   `json:"city,omitempty"`
	Zip       string   `json:"zip,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (l Location) IsEmpty() bool {
	return l.Address == "" && l.Street == "" && l.City == "" && l.Zip == "" && l.Country == ""
}

type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Order struct {
	ID        string           `json:"id"`
	Customer  Customer         `json:"customer"`
	Location  Location         `json:"location"`
	Service   ServiceSelection `json:"service"`
	Schedule  Schedule         `json:"schedule"`
	Status    string           `json:"status"`
	Message   string           `json:"message,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// OrderFilter narrows ListOrders. Zero values mean "any".
type OrderFilter struct {
	Status      string
	ServiceType ServiceType
	Limit       int
}

// OrderTransitions lists the statuses an order may move to.
var OrderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
}

// OrderSourcesFor returns the statuses from which an order may reach target.
func OrderSourcesFor(target string) []string {
	var sources []string
	for from, targets := range OrderTransitions {
		for _, to := range targets {
			if to == target {
				sources = append(sources, from)
			}
		}
	}
	return sources
}
