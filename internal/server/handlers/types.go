// Defines the JSON API request and response types.

package handlers

import (
	"errors"

	"github.com/maruel/localcrm/internal/models"
	"github.com/maruel/localcrm/internal/storage/git"
)

// Validatable is implemented by request types that can validate their fields.
// Wrap uses it as a type constraint so every request type provides validation.
type Validatable interface {
	Validate() error
}

// CustomerInput holds the fields a client may set. The identifier comes from the
// path or is allocated by the server; timestamp and edit link are derived.
type CustomerInput struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date,omitempty"`
	CareLevel string `json:"care_level,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Email     string `json:"email,omitempty"`
	Staff     string `json:"staff,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Record converts the input to a record without identifier.
func (c *CustomerInput) Record() models.Record {
	return (&models.Customer{
		Name:      c.Name,
		StartDate: c.StartDate,
		CareLevel: c.CareLevel,
		Phone:     c.Phone,
		Address:   c.Address,
		Email:     c.Email,
		Staff:     c.Staff,
		Notes:     c.Notes,
	}).Record()
}

// HealthRequest is the request for the health check.
type HealthRequest struct{}

// Validate implements Validatable.
func (r *HealthRequest) Validate() error { return nil }

// HealthResponse is the response for the health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Records int    `json:"records"`
}

// ListCustomersRequest lists all customers.
type ListCustomersRequest struct{}

// Validate implements Validatable.
func (r *ListCustomersRequest) Validate() error { return nil }

// ListCustomersResponse is the list of customers in table order.
type ListCustomersResponse struct {
	Customers []*models.Customer `json:"customers"`
}

// NextIDRequest asks for the identifier a new customer would get.
type NextIDRequest struct{}

// Validate implements Validatable.
func (r *NextIDRequest) Validate() error { return nil }

// NextIDResponse holds the next identifier.
type NextIDResponse struct {
	ID string `json:"id"`
}

// GetCustomerRequest fetches one customer.
type GetCustomerRequest struct {
	ID string `path:"id" json:"-"`
}

// Validate implements Validatable.
func (r *GetCustomerRequest) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

// CreateCustomerRequest creates a customer with a server allocated identifier.
type CreateCustomerRequest struct {
	CustomerInput
}

// Validate implements Validatable.
func (r *CreateCustomerRequest) Validate() error { return nil }

// PutCustomerRequest creates or updates the customer ID.
type PutCustomerRequest struct {
	ID string `path:"id" json:"-"`
	CustomerInput
}

// Validate implements Validatable.
func (r *PutCustomerRequest) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

// CustomerResponse is the stored customer after a read or a write.
type CustomerResponse struct {
	Customer *models.Customer `json:"customer"`
	Created  bool             `json:"created,omitempty"`
}

// SchemaRequest fetches the JSON Schema of a customer.
type SchemaRequest struct{}

// Validate implements Validatable.
func (r *SchemaRequest) Validate() error { return nil }

// HistoryRequest lists recent changes of the table.
type HistoryRequest struct {
	Limit int `query:"limit" json:"-"`
}

// Validate implements Validatable.
func (r *HistoryRequest) Validate() error {
	if r.Limit < 0 {
		return errors.New("limit must be non-negative")
	}
	return nil
}

// HistoryResponse lists commits, newest first.
type HistoryResponse struct {
	Commits []*git.Commit `json:"commits"`
}
