package zoun

// FormData is the raw input of a form submission: text values and uploaded file payloads keyed by field name.
type FormData struct {
	Values map[string]string
	Files  map[string][]byte
}

// Value returns the submitted text for a field and whether it was present.
func (f FormData) Value(name string) (string, bool) {
	if f.Values == nil {
		return "", false
	}
	v, ok := f.Values[name]
	return v, ok
}

// File returns the uploaded payload for a field and whether it was present.
func (f FormData) File(name string) ([]byte, bool) {
	if f.Files == nil {
		return nil, false
	}
	v, ok := f.Files[name]
	return v, ok
}

// ListRequest carries the parameters of a list operation.
type ListRequest struct {
	Model   string `json:"model"`
	Page    int    `json:"page"`
	SortBy  string `json:"sortBy"`
	SortDir string `json:"sortDir"`
	Search  string `json:"search,omitempty"`
}

// PageInfo describes one page of a paginated listing.
type PageInfo struct {
	Index        int   `json:"index"`
	Size         int   `json:"size"`
	TotalRecords int64 `json:"totalRecords"`
	TotalPages   int   `json:"totalPages"`
}

// HasNext reports whether a page follows this one.
func (p PageInfo) HasNext() bool {
	return p.Index+1 < p.TotalPages
}

// HasPrevious reports whether a page precedes this one.
func (p PageInfo) HasPrevious() bool {
	return p.Index > 0
}

// ModelSummary is one row of the dashboard.
type ModelSummary struct {
	Name       string `json:"name"`
	RecordType string `json:"recordType"`
	IDType     string `json:"idType"`
	FieldCount int    `json:"fieldCount"`
}

// Dashboard lists every registered model in registration order.
type Dashboard struct {
	AppTitle string         `json:"appTitle"`
	DarkMode bool           `json:"darkMode"`
	Models   []ModelSummary `json:"models"`
}

// ListView is the visible-field projection plus one page of records.
type ListView struct {
	Model   string            `json:"model"`
	Fields  []FieldDescriptor `json:"fields"`
	Records []any             `json:"records"`
	Page    PageInfo          `json:"page"`
	SortBy  string            `json:"sortBy"`
	SortDir string            `json:"sortDir"`
	Search  string            `json:"search,omitempty"`
}

// FormView is the data needed to render a create or edit form.
type FormView struct {
	Model  string            `json:"model"`
	Fields []FieldDescriptor `json:"fields"`
	// Record is nil for a new form.
	Record              any              `json:"record"`
	IsEdit              bool             `json:"isEdit"`
	RelationshipOptions map[string][]any `json:"relationshipOptions"`
}

// NextView names the view a client should render after a write operation.
type NextView string

const (
	NextViewList    NextView = "list"
	NextViewNewForm NextView = "new"
)

// OperationResult reports the outcome of a write operation. Failures are recoverable and never raised.
type OperationResult struct {
	Model   string     `json:"model"`
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Record  any        `json:"record,omitempty"`
	Err     *ZounError `json:"error,omitempty"`
	Next    NextView   `json:"next"`
}

// BinaryContent is the payload of a binary field download.
type BinaryContent struct {
	Model     string `json:"model"`
	Field     string `json:"field"`
	Data      []byte `json:"-"`
	NoContent bool   `json:"noContent"`
}
