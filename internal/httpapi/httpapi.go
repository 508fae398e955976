// Package httpapi builds API Gateway proxy responses and reads the parts of
// proxy requests shared by every handler.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/pricofy/csv-translation/internal/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// MessageResponse is the body of preflight replies.
type MessageResponse struct {
	Message string `json:"message"`
}

// CORSHeaders returns the fixed headers attached to every response.
func CORSHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type, Authorization, X-Api-Key",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	}
}

// JSON encodes body as the response payload.
func JSON(status int, body any) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"failed to encode response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    CORSHeaders(),
		Body:       string(payload),
	}
}

// Error responds with an ErrorResponse.
func Error(status int, message string) events.APIGatewayProxyResponse {
	return JSON(status, ErrorResponse{Error: message})
}

// ErrorDetails responds with an ErrorResponse carrying details.
func ErrorDetails(status int, message, details string) events.APIGatewayProxyResponse {
	return JSON(status, ErrorResponse{Error: message, Details: details})
}

// Preflight answers a CORS OPTIONS request.
func Preflight() events.APIGatewayProxyResponse {
	return JSON(http.StatusOK, MessageResponse{Message: "CORS preflight OK"})
}

// IsPreflight reports whether req is a CORS OPTIONS request.
func IsPreflight(req events.APIGatewayProxyRequest) bool {
	return strings.EqualFold(req.HTTPMethod, http.MethodOptions)
}

// Header returns the value of name from headers, ignoring case.
func Header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Claims returns the string claims set by a Cognito user pool authorizer.
func Claims(req events.APIGatewayProxyRequest) map[string]string {
	raw, ok := req.RequestContext.Authorizer["claims"].(map[string]any)
	if !ok {
		return map[string]string{}
	}
	claims := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			claims[k] = s
		}
	}
	return claims
}

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidCredential):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrUnsupportedEventKind),
		errors.Is(err, domain.ErrEmptyBody),
		errors.Is(err, domain.ErrInvalidContent),
		errors.Is(err, domain.ErrMalformedCSV):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
