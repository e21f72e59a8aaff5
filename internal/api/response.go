package api

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error response shape. Clients distinguish rate-limit from
// quota errors by the message text, so wording is part of the API.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// JSON writes v as the response body. Payload shapes are defined per
// endpoint, not wrapped in an envelope.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func JSONError(w http.ResponseWriter, status int, err error) {
	JSONErrorMessage(w, status, err.Error())
}

func JSONErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorBody{Detail: message})
}
