package models

import (
	"encoding/json"
	"strings"
)

// ServiceLayerError is the error envelope the backend returns on failed calls
type ServiceLayerError struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message struct {
			Lang  string `json:"lang"`
			Value string `json:"value"`
		} `json:"message"`
	} `json:"error"`
}

// ErrorMessage extracts the human readable message from a backend error body.
// Bodies that are not an error envelope are returned trimmed.
func ErrorMessage(body []byte) string {
	var envelope ServiceLayerError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message.Value != "" {
		return envelope.Error.Message.Value
	}
	return strings.TrimSpace(string(body))
}
