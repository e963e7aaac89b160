package importer

// ImportError is one problem found during an import. Line is the 1-indexed
// source line of the offending row, or 0 for a pipeline-level error that is
// not attributable to a single row.
type ImportError struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// Result accumulates the outcome of one import run (or, in the queued
// model, of one row). Total always equals created + updated + skipped +
// rejected rows once a run is fully accounted.
type Result struct {
	Total   int
	Created int
	Updated int
	Skipped int
	Errors  []ImportError
}

func NewResult() *Result {
	return &Result{}
}

// AddError records a row-level error tagged with its source line.
func (r *Result) AddError(message string, line int) {
	r.Errors = append(r.Errors, ImportError{Message: message, Line: line})
}

// AddPipelineError records an error affecting the whole import.
func (r *Result) AddPipelineError(message string) {
	r.Errors = append(r.Errors, ImportError{Message: message})
}

// HasPipelineError reports whether any error is not tied to a single row.
func (r *Result) HasPipelineError() bool {
	for _, importErr := range r.Errors {
		if importErr.Line == 0 {
			return true
		}
	}
	return false
}

// RejectedRows counts errors attributable to individual rows.
func (r *Result) RejectedRows() int {
	count := 0
	for _, importErr := range r.Errors {
		if importErr.Line > 0 {
			count++
		}
	}
	return count
}

// SuccessfulRows counts rows that were created, updated, or left unchanged.
func (r *Result) SuccessfulRows() int {
	return r.Created + r.Updated + r.Skipped
}

// Success reports whether the run counts as successful: no pipeline-level
// error occurred and at least one row landed (created, updated, or skipped).
// A file with only a header row and no data rows is the one run that
// succeeds with zero rows.
func (r *Result) Success() bool {
	if r.HasPipelineError() {
		return false
	}
	if r.Total == 0 {
		return len(r.Errors) == 0
	}
	return r.SuccessfulRows() > 0
}

// ErrorMessages flattens the error list for persistence and API payloads.
func (r *Result) ErrorMessages() []string {
	if len(r.Errors) == 0 {
		return nil
	}
	messages := make([]string, len(r.Errors))
	for i, importErr := range r.Errors {
		messages[i] = importErr.Message
	}
	return messages
}
