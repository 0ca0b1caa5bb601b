package entities

import "encoding/json"

// ErrorDetail is one message of a structured mutation error
type ErrorDetail struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// MutationError groups the details reported for one entity, keyed by Title
// (the entity uuid for deletes).
type MutationError struct {
	Title string        `json:"title"`
	List  []ErrorDetail `json:"list"`
}

// DeleteResult collects the per-uuid failures of a batch delete
type DeleteResult struct {
	Errors []MutationError
}

// OK reports whether every uuid of the batch was deleted
func (r DeleteResult) OK() bool {
	return len(r.Errors) == 0
}

// Single returns the detail list of the only error when the batch produced
// exactly one.
func (r DeleteResult) Single() ([]ErrorDetail, bool) {
	if len(r.Errors) != 1 {
		return nil, false
	}
	return r.Errors[0].List, true
}

// MarshalJSON keeps the historical wire shape: a batch with exactly one
// failure is rendered as that failure's detail list, any other batch as the
// list of per-uuid errors.
func (r DeleteResult) MarshalJSON() ([]byte, error) {
	if list, ok := r.Single(); ok {
		return json.Marshal(list)
	}
	if r.Errors == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Errors)
}
