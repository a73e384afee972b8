package models

// ValidationErrors collects user-facing validation messages keyed by the
// field they belong to. These are recoverable input problems, not Go
// errors: callers re-render the form with them attached.
type ValidationErrors map[string][]string

func NewValidationErrors() ValidationErrors {
	return make(ValidationErrors)
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = append(v[field], message)
}

// Any reports whether at least one message has been recorded.
func (v ValidationErrors) Any() bool {
	return len(v) > 0
}

func (v ValidationErrors) On(field string) []string {
	return v[field]
}

// Merge copies every message from other into v.
func (v ValidationErrors) Merge(other ValidationErrors) {
	for field, messages := range other {
		v[field] = append(v[field], messages...)
	}
}
