package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/csv-translation/internal/domain"
)

func TestJSON(t *testing.T) {
	resp := JSON(http.StatusCreated, map[string]int{"count": 2})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"count":2}`, resp.Body)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	resp = JSON(http.StatusOK, map[string]any{"bad": make(chan int)})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestErrorAndPreflight(t *testing.T) {
	assert.JSONEq(t, `{"error":"API key is required"}`, Error(http.StatusUnauthorized, "API key is required").Body)
	assert.JSONEq(t, `{"error":"boom","details":"more"}`, ErrorDetails(http.StatusInternalServerError, "boom", "more").Body)

	resp := Preflight()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"CORS preflight OK"}`, resp.Body)

	assert.True(t, IsPreflight(events.APIGatewayProxyRequest{HTTPMethod: "options"}))
	assert.False(t, IsPreflight(events.APIGatewayProxyRequest{HTTPMethod: "POST"}))
}

func TestHeader(t *testing.T) {
	headers := map[string]string{"X-API-Key": "k1", "content-length": "10"}
	assert.Equal(t, "k1", Header(headers, "x-api-key"))
	assert.Equal(t, "10", Header(headers, "Content-Length"))
	assert.Empty(t, Header(headers, "authorization"))
	assert.Empty(t, Header(nil, "x-api-key"))
}

func TestClaims(t *testing.T) {
	req := events.APIGatewayProxyRequest{RequestContext: events.APIGatewayProxyRequestContext{
		Authorizer: map[string]any{"claims": map[string]any{"sub": "u-1", "email": "a@b.c", "exp": 12}},
	}}
	claims := Claims(req)
	require.Len(t, claims, 2)
	assert.Equal(t, "a@b.c", claims["email"])

	assert.Empty(t, Claims(events.APIGatewayProxyRequest{}))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidCredential), http.StatusForbidden},
		{domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{domain.ErrEmptyBody, http.StatusBadRequest},
		{domain.ErrMalformedCSV, http.StatusBadRequest},
		{domain.ErrUnsupportedEventKind, http.StatusBadRequest},
		{domain.ErrStructural, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
