package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// WriteError writes the JSON error envelope used by every endpoint:
// {"error":{"message":...,"type":...,"code":...}}.
func WriteError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorBody{
			Message: message,
			Type:    errType,
			Code:    strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_")),
		},
	})
}
