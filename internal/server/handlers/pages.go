// Serves the HTML pages used to browse and edit customers.

package handlers

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/maruel/localcrm/internal/models"
	"github.com/maruel/localcrm/internal/storage"
	"github.com/maruel/localcrm/internal/validate"
	"github.com/maruel/localcrm/internal/xlsxdb"
)

// PageHandler renders the HTML user interface.
type PageHandler struct {
	svc  *storage.CustomerService
	tmpl *template.Template
}

// NewPageHandler creates a new page handler.
func NewPageHandler(svc *storage.CustomerService, tmpl *template.Template) *PageHandler {
	return &PageHandler{svc: svc, tmpl: tmpl}
}

type listPage struct {
	Header    []string
	Customers []*models.Customer
}

type formPage struct {
	Customer *models.Customer
	Error    string
}

// Index redirects to the customer list.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/customers", http.StatusTemporaryRedirect)
}

// List renders all customers.
func (h *PageHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.ListRecords(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "list.html", &listPage{Header: models.Header(), Customers: models.CustomersFromRecords(records)})
}

// New renders an empty form prefilled with the next identifier.
func (h *PageHandler) New(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.AllocateIdentifier(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "form.html", &formPage{Customer: &models.Customer{ID: id}})
}

// Create handles the new form. An existing identifier is updated instead.
func (h *PageHandler) Create(w http.ResponseWriter, r *http.Request) {
	c := customerFromForm(r)
	if _, err := h.svc.CreateOrUpdate(r.Context(), c.ID, c.Record()); err != nil {
		if msg, ok := validationMessage(err); ok {
			h.render(w, r, http.StatusBadRequest, "form.html", &formPage{Customer: c, Error: msg})
			return
		}
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/customers", http.StatusSeeOther)
}

// Edit renders the edit form of an existing customer. Unknown identifiers go back to
// the list.
func (h *PageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetForEdit(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Redirect(w, r, "/customers", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "edit.html", &formPage{Customer: models.CustomerFromRecord(rec)})
}

// Update handles the edit form. Unknown identifiers are ignored.
func (h *PageHandler) Update(w http.ResponseWriter, r *http.Request) {
	c := customerFromForm(r)
	c.ID = r.PathValue("id")
	_, err := h.svc.Update(r.Context(), c.ID, c.Record())
	if msg, ok := validationMessage(err); ok {
		h.render(w, r, http.StatusBadRequest, "edit.html", &formPage{Customer: c, Error: msg})
		return
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/customers", http.StatusSeeOther)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Failed to render template", "template", name, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (h *PageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Page error", "path", r.URL.Path, "err", err)
	status := http.StatusInternalServerError
	if errors.Is(err, xlsxdb.ErrStorageUnavailable) {
		status = http.StatusServiceUnavailable
	}
	http.Error(w, http.StatusText(status), status)
}

func customerFromForm(r *http.Request) *models.Customer {
	// On a malformed body the form is empty and the identifier check rejects it.
	_ = r.ParseForm()
	return &models.Customer{
		ID:        r.PostFormValue("customer_id"),
		Name:      r.PostFormValue("name"),
		StartDate: r.PostFormValue("start_date"),
		CareLevel: r.PostFormValue("care"),
		Phone:     r.PostFormValue("phone"),
		Address:   r.PostFormValue("address"),
		Email:     r.PostFormValue("email"),
		Staff:     r.PostFormValue("staff"),
		Notes:     r.PostFormValue("note"),
	}
}

func validationMessage(err error) (string, bool) {
	var verr *validate.ValidationError
	if errors.As(err, &verr) {
		return verr.Message, true
	}
	return "", false
}
