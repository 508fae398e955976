package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/csv-translation/internal/httpapi"
	"github.com/pricofy/csv-translation/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recorder struct {
	got events.APIGatewayProxyRequest
}

func (r *recorder) handle(_ context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	r.got = req
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusCreated,
		Headers:    map[string]string{"Content-Type": "application/json", "X-Handled": "yes"},
		Body:       `{"ok":true}`,
	}, nil
}

func newRouter(rec *recorder) *gin.Engine {
	return SetupRouter(Routes{
		Translate: rec.handle,
		Files:     rec.handle,
		Uploads:   rec.handle,
		APIKeys:   rec.handle,
		Events: func(_ context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: string(raw)}, nil
		},
	}, logger.Discard())
}

func TestProxyTranslatesRequest(t *testing.T) {
	rec := &recorder{}
	r := newRouter(rec)

	req := httptest.NewRequest(http.MethodPost, "/translate?source_lang=en&target_lang=es&target_lang=fr", strings.NewReader("a,b\n1,2\n"))
	req.Header.Set("X-Api-Key", "key-1")
	req.Header.Set(HeaderUserSub, "sub-1")
	req.Header.Set(HeaderUserEmail, "alice@example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Handled"))
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	got := rec.got
	assert.Equal(t, http.MethodPost, got.HTTPMethod)
	assert.Equal(t, "/translate", got.Path)
	assert.Equal(t, "a,b\n1,2\n", got.Body)
	assert.False(t, got.IsBase64Encoded)
	assert.Equal(t, "key-1", httpapi.Header(got.Headers, "x-api-key"))
	assert.Equal(t, "es", got.QueryStringParameters["target_lang"])
	assert.Equal(t, map[string]string{"sub": "sub-1", "email": "alice@example.com"}, httpapi.Claims(got))
}

func TestProxyEncodesBinaryBody(t *testing.T) {
	rec := &recorder{}
	r := newRouter(rec)

	body := []byte{0xff, 0xfe, 0x00, 0x41}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/translate", strings.NewReader(string(body))))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, rec.got.IsBase64Encoded)
	assert.Equal(t, base64.StdEncoding.EncodeToString(body), rec.got.Body)
}

func TestProxyWithoutClaims(t *testing.T) {
	rec := &recorder{}
	r := newRouter(rec)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads", nil))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, httpapi.Claims(rec.got))
}

func TestProxyHandlerError(t *testing.T) {
	r := SetupRouter(Routes{
		Files: func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{}, errors.New("boom")
		},
	}, logger.Discard())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"boom"}`, w.Body.String())
}

func TestRawEvents(t *testing.T) {
	r := newRouter(&recorder{})

	event := `{"Records":[{"eventSource":"aws:sqs","body":"{}"}]}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(event)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, event, w.Body.String())
}

func TestBase64Response(t *testing.T) {
	r := SetupRouter(Routes{
		Files: func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{
				StatusCode:      http.StatusOK,
				Headers:         map[string]string{"Content-Type": "text/csv"},
				Body:            base64.StdEncoding.EncodeToString([]byte("a,b\n")),
				IsBase64Encoded: true,
			}, nil
		},
	}, logger.Discard())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a,b\n", w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}

func TestHealth(t *testing.T) {
	r := newRouter(&recorder{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"csv-translation"}`, w.Body.String())
}
