// Package extract pulls lab results and clinical note sections out of PDF reports.
package extract

import "errors"

// ErrUnreadableDocument is wrapped by every failure to open or parse a document.
var ErrUnreadableDocument = errors.New("unreadable document")

// Row is one table row. Missing cells are empty strings.
type Row []string

// Table is a run of rows detected on a page.
type Table []Row

// Document is the extraction capability the strategies depend on.
// Pages are numbered from 1.
type Document interface {
	NumPages() int
	PageText(page int) (string, error)
	PageTables(page int) ([]Table, error)
}

// LabResults maps a test name to its reported value.
type LabResults map[string]string

// ClinicalSections maps each clinical note heading to its text.
type ClinicalSections map[string]string
