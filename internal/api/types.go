package api

import (
	"fmt"
	"net/http"
)

// Error codes the deploy flow reacts to
const (
	CodePlanRequiresPublic = "plan_requires_public"
)

// APIError is an error response from the hosting API
type APIError struct {
	Status   int            `json:"-"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Keyword  string         `json:"keyword,omitempty"`
	DataPath string         `json:"dataPath,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return fmt.Sprintf("API error %s (status %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("API error: status %d", e.Status)
}

// Param returns a string parameter of the error, or ""
func (e *APIError) Param(name string) string {
	if e.Params == nil {
		return ""
	}
	s, _ := e.Params[name].(string)
	return s
}

// StatusError is a non-2xx response on a streaming endpoint
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Deployment events status %d", e.Status)
}

// Retryable reports whether the server side failed (5xx)
func (e *StatusError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError
}

type errorResponse struct {
	Error *APIError `json:"error"`
}

type secretsResponse struct {
	Secrets []secretEntry `json:"secrets"`
}

type secretEntry struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}
