// Typed view of a customer record for the JSON API and HTML templates.

package models

// Customer is a typed view of a Record.
//
// Timestamp and EditLink are derived by the storage layer on every write; values
// supplied by clients are ignored.
type Customer struct {
	ID        string `json:"id" jsonschema:"description=Zero-padded 4 digit identifier,pattern=^[0-9]+$"`
	Name      string `json:"name" jsonschema:"description=Customer name"`
	StartDate string `json:"start_date,omitempty" jsonschema:"description=Service start date"`
	CareLevel string `json:"care_level,omitempty" jsonschema:"description=Care category"`
	Phone     string `json:"phone,omitempty" jsonschema:"description=Phone number such as 090-1234-5678"`
	Address   string `json:"address,omitempty"`
	Email     string `json:"email,omitempty" jsonschema:"format=email"`
	Staff     string `json:"staff,omitempty" jsonschema:"description=Staff in charge"`
	Notes     string `json:"notes,omitempty"`
	Timestamp string `json:"timestamp,omitempty" jsonschema:"readOnly=true,description=Last write time (YYYY/MM/DD HH:MM:SS)"`
	EditLink  string `json:"edit_link,omitempty" jsonschema:"readOnly=true"`
}

// Record converts the customer to a Record.
func (c *Customer) Record() Record {
	return Record{
		FieldID:        c.ID,
		FieldName:      c.Name,
		FieldStartDate: c.StartDate,
		FieldCareLevel: c.CareLevel,
		FieldPhone:     c.Phone,
		FieldAddress:   c.Address,
		FieldEmail:     c.Email,
		FieldStaff:     c.Staff,
		FieldNotes:     c.Notes,
		FieldTimestamp: c.Timestamp,
		FieldEditLink:  c.EditLink,
	}
}

// CustomerFromRecord converts a Record to a Customer.
func CustomerFromRecord(r Record) *Customer {
	return &Customer{
		ID:        r[FieldID],
		Name:      r[FieldName],
		StartDate: r[FieldStartDate],
		CareLevel: r[FieldCareLevel],
		Phone:     r[FieldPhone],
		Address:   r[FieldAddress],
		Email:     r[FieldEmail],
		Staff:     r[FieldStaff],
		Notes:     r[FieldNotes],
		Timestamp: r[FieldTimestamp],
		EditLink:  r[FieldEditLink],
	}
}

// CustomersFromRecords converts a slice of records.
func CustomersFromRecords(records []Record) []*Customer {
	out := make([]*Customer, 0, len(records))
	for _, r := range records {
		out = append(out, CustomerFromRecord(r))
	}
	return out
}
