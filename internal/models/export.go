package models

// ExportFormat is the rendered output type for inventory exports.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportKind selects which documents an inventory export covers.
type ExportKind string

const (
	// ExportKindInventory covers teacher and property documents together.
	ExportKindInventory ExportKind = "inventory"
	// ExportKindTeachers covers teacher documents only.
	ExportKindTeachers ExportKind = "teachers"
	// ExportKindProperty covers property documents only.
	ExportKindProperty ExportKind = "property"
)
