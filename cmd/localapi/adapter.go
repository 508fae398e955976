package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
)

// Development stand-ins for the claims an API Gateway authorizer would add.
const (
	HeaderUserSub   = "X-User-Sub"
	HeaderUserEmail = "X-User-Email"
)

// APIHandler is the shape shared by every API Gateway backed handler.
type APIHandler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// toProxyRequest converts a gin request into the event API Gateway would
// deliver for it. Bodies that are not valid UTF-8 are base64 encoded.
func toProxyRequest(c *gin.Context) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return events.APIGatewayProxyRequest{}, fmt.Errorf("failed to read request body: %w", err)
	}

	req := events.APIGatewayProxyRequest{
		HTTPMethod:            c.Request.Method,
		Path:                  c.Request.URL.Path,
		Headers:               firstValues(c.Request.Header),
		QueryStringParameters: firstValues(c.Request.URL.Query()),
	}
	if utf8.Valid(body) {
		req.Body = string(body)
	} else {
		req.Body = base64.StdEncoding.EncodeToString(body)
		req.IsBase64Encoded = true
	}

	claims := map[string]any{}
	if sub := c.GetHeader(HeaderUserSub); sub != "" {
		claims["sub"] = sub
	}
	if email := c.GetHeader(HeaderUserEmail); email != "" {
		claims["email"] = email
	}
	if len(claims) > 0 {
		req.RequestContext.Authorizer = map[string]any{"claims": claims}
	}
	return req, nil
}

func firstValues[M ~map[string][]string](m M) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// writeProxyResponse copies resp onto the gin response.
func writeProxyResponse(c *gin.Context, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			_ = c.Error(err)
			c.Status(http.StatusInternalServerError)
			return
		}
		body = decoded
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	c.Data(status, resp.Headers["Content-Type"], body)
}
