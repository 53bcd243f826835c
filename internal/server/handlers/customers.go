// Serves the customer JSON API.

package handlers

import (
	"context"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/maruel/localcrm/internal/models"
	"github.com/maruel/localcrm/internal/storage"
	"github.com/maruel/localcrm/internal/storage/git"
)

// CustomerHandler handles customer JSON requests.
type CustomerHandler struct {
	svc *storage.CustomerService

	schemaOnce sync.Once
	schema     *jsonschema.Schema
}

// NewCustomerHandler creates a new customer handler.
func NewCustomerHandler(svc *storage.CustomerService) *CustomerHandler {
	return &CustomerHandler{svc: svc}
}

// List returns every customer in table order.
func (h *CustomerHandler) List(ctx context.Context, _ *ListCustomersRequest) (*ListCustomersResponse, error) {
	records, err := h.svc.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	return &ListCustomersResponse{Customers: models.CustomersFromRecords(records)}, nil
}

// NextID returns the identifier the next customer would get. It is not reserved.
func (h *CustomerHandler) NextID(ctx context.Context, _ *NextIDRequest) (*NextIDResponse, error) {
	id, err := h.svc.AllocateIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	return &NextIDResponse{ID: id}, nil
}

// Get returns one customer.
func (h *CustomerHandler) Get(ctx context.Context, req *GetCustomerRequest) (*CustomerResponse, error) {
	rec, err := h.svc.GetForEdit(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &CustomerResponse{Customer: models.CustomerFromRecord(rec)}, nil
}

// Create appends a customer under a newly allocated identifier.
func (h *CustomerHandler) Create(ctx context.Context, req *CreateCustomerRequest) (*CustomerResponse, error) {
	res, err := h.svc.Create(ctx, req.Record())
	if err != nil {
		return nil, err
	}
	return &CustomerResponse{Customer: models.CustomerFromRecord(res.Record), Created: res.Created}, nil
}

// Put creates or updates the customer in the path.
func (h *CustomerHandler) Put(ctx context.Context, req *PutCustomerRequest) (*CustomerResponse, error) {
	res, err := h.svc.CreateOrUpdate(ctx, req.ID, req.Record())
	if err != nil {
		return nil, err
	}
	return &CustomerResponse{Customer: models.CustomerFromRecord(res.Record), Created: res.Created}, nil
}

// Schema returns the JSON Schema of a customer.
func (h *CustomerHandler) Schema(_ context.Context, _ *SchemaRequest) (*jsonschema.Schema, error) {
	h.schemaOnce.Do(func() {
		r := jsonschema.Reflector{DoNotReference: true}
		h.schema = r.Reflect(&models.Customer{})
	})
	return h.schema, nil
}

// History returns recent changes of the customer table.
func (h *CustomerHandler) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	n := req.Limit
	if n == 0 {
		n = 50
	}
	commits, err := h.svc.History(ctx, n)
	if err != nil {
		return nil, err
	}
	if commits == nil {
		commits = []*git.Commit{}
	}
	return &HistoryResponse{Commits: commits}, nil
}
