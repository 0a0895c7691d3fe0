package auth

import "sort"

// ValidationError lists the request fields that failed validation, with the first problem
// found for each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "validation failed"
	}
	return "validation failed: " + names[0] + ": " + e.Fields[names[0]]
}
