package shared

import (
	"encoding/json"
	"net/http"
)

// DecodeJSON decodes the request body into v, rejecting fields the target
// struct does not declare so client typos fail loudly instead of being
// silently dropped.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
