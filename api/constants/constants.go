package constants

// Request errors
const (
	ErrParseForm         = "Failed to parse multipart form"
	ErrMissingParcels    = "parcels file is required"
	ErrMissingDeliveries = "deliveries file is required"
	ErrMissingFile       = "file is required"
	ErrOpenFile          = "Failed to open file: "
	ErrUnsupportedFile   = "Unsupported file type: "
	ErrInvalidYield      = "yield_per_hectare must be a positive number"
	ErrInvalidGroupBy    = "group_by_year must be true or false"
	ErrUnknownSource     = "Unknown delivery source: "
	ErrMethodNotAllowed  = "Method Not Allowed"
)

// Run errors
const (
	ErrNoLinkedDeliveries = "No delivery matched a registered producer, vartip and parcel. Check that the files belong to the same campaign"
	ErrMissingColumn      = "Missing column: "
	ErrRunFailed          = "Processing failed: "
	ErrWriteWorkbook      = "Failed to build the result workbook"
	ErrCancelled          = "Request cancelled"
)

// Content Types
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "Content-Type"

	HeaderContentDisposition = "Content-Disposition"
	HeaderRunID              = "X-Run-ID"
)

// Form fields
const (
	FieldParcels     = "parcels"
	FieldDeliveries  = "deliveries"
	FieldCorrections = "it04"
	FieldFile        = "file"
	FieldSource      = "source"
	FieldYield       = "yield_per_hectare"
	FieldGroupByYear = "group_by_year"
)
