// Package xlsxdb treats a single worksheet of an .xlsx workbook as a database table.
//
// # Overview
//
// [Store] owns the workbook file. Row 1 of the sheet is the header (the schema from
// package models), rows 2..N hold one record each. A row is present iff its first cell
// (the identifier) is non-empty; other rows are blank padding and are skipped.
//
// # Concurrency: Pessimistic Locking
//
// All access goes through [Store.View] or [Store.Update]. Both hold the store's mutex
// for the whole load, read-or-mutate, save sequence, so operations are linearizable
// within the process. There is no per-row locking and no caching across calls: every
// call reloads the workbook from disk and rewrites it, reads included. This keeps the
// file and what callers observe in sync even when the workbook is edited by hand
// between requests.
//
// # File Format
//
// The identifier cell is always written as a string with the text number format "@"
// so spreadsheet applications keep leading zeros ("0004"). Saves go to a temporary
// file in the same directory which is then renamed over the table file.
package xlsxdb
