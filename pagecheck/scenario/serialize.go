package scenario

import "encoding/json"

// MarshalReport serialises a Report to JSON.
func MarshalReport(r *Report) ([]byte, error) {
	return json.Marshal(r)
}

// MarshalResult serialises a Result to JSON.
func MarshalResult(r *Result) ([]byte, error) {
	return json.Marshal(r)
}
