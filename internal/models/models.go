// Package models defines the customer table schema and the record types that flow
// between the storage layer and the transport layer.
package models

import (
	"fmt"
	"time"
)

// SheetName is the name of the worksheet holding the customer table.
const SheetName = "Customers"

// Column positions, 1-based like spreadsheet columns.
const (
	ColID = iota + 1
	ColName
	ColStartDate
	ColCareLevel
	ColPhone
	ColAddress
	ColEmail
	ColStaff
	ColNotes
	ColTimestamp
	ColEditLink
)

// Field names in column order. This is the header row of the table and the only
// mapping between column position and attribute.
const (
	FieldID        = "CustomerID"
	FieldName      = "利用者名称"
	FieldStartDate = "利用開始日"
	FieldCareLevel = "介護区分"
	FieldPhone     = "連絡先（電話）"
	FieldAddress   = "住所"
	FieldEmail     = "メールアドレス"
	FieldStaff     = "担当者"
	FieldNotes     = "注意事項"
	FieldTimestamp = "タイムスタンプ"
	FieldEditLink  = "データ編集リンク"
)

var fields = [...]string{
	FieldID,
	FieldName,
	FieldStartDate,
	FieldCareLevel,
	FieldPhone,
	FieldAddress,
	FieldEmail,
	FieldStaff,
	FieldNotes,
	FieldTimestamp,
	FieldEditLink,
}

// NumFields is the number of columns in the table.
const NumFields = len(fields)

// TimestampLayout is the format of the timestamp column.
const TimestampLayout = "2006/01/02 15:04:05"

// Header returns a copy of the ordered field names.
func Header() []string {
	out := make([]string, NumFields)
	copy(out, fields[:])
	return out
}

// FieldAt returns the field name at the 1-based column position.
func FieldAt(col int) string {
	return fields[col-1]
}

// EditLink returns the edit page path for a customer.
func EditLink(id string) string {
	return fmt.Sprintf("/customers/%s/edit", id)
}

// FormatTimestamp formats t in local time the way the timestamp column stores it.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// Record maps each field name to its cell value.
type Record map[string]string

// ID returns the identifier field.
func (r Record) ID() string {
	return r[FieldID]
}

// Values returns the cell values in column order. Missing fields are empty.
func (r Record) Values() []string {
	out := make([]string, NumFields)
	for i, f := range fields {
		out[i] = r[f]
	}
	return out
}

// RecordFromValues builds a Record from cell values in column order. Missing
// trailing cells are treated as empty and extra cells are ignored.
func RecordFromValues(values []string) Record {
	r := make(Record, NumFields)
	for i, f := range fields {
		if i < len(values) {
			r[f] = values[i]
		} else {
			r[f] = ""
		}
	}
	return r
}

// Clone returns a copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
