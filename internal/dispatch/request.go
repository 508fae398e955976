package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/pricofy/csv-translation/internal/csvcodec"
	"github.com/pricofy/csv-translation/internal/domain"
	"github.com/pricofy/csv-translation/internal/httpapi"
	"github.com/pricofy/csv-translation/internal/pipeline"
)

// classifyLines is the number of leading body lines sniffed to tell CSV
// from JSON.
const classifyLines = 3

// DirectUploadFile is the original_file recorded for inline CSV bodies.
const DirectUploadFile = "direct_upload"

// PayloadTooLargeResponse is returned with 413.
type PayloadTooLargeResponse struct {
	Error        string `json:"error"`
	MaxSize      int    `json:"max_size"`
	ReceivedSize int    `json:"received_size"`
}

// UnknownContentResponse is returned when the body is neither CSV nor a
// recognised JSON shape.
type UnknownContentResponse struct {
	Error          string   `json:"error"`
	SuggestedTypes []string `json:"suggested_types"`
}

// CSVResult is returned for an inline CSV translation.
type CSVResult struct {
	Status         domain.Status `json:"status"`
	FileID         string        `json:"file_id"`
	Content        [][]string    `json:"content"`
	TranslatedFile string        `json:"translated_file"`
}

// TextResult is returned for a single text translation.
type TextResult struct {
	TranslatedText string        `json:"translatedText"`
	Status         domain.Status `json:"status"`
	SourceLang     string        `json:"source_lang"`
	TargetLang     string        `json:"target_lang"`
}

// FailedResult is returned when an inline job fails.
type FailedResult struct {
	Error  string        `json:"error"`
	Status domain.Status `json:"status"`
	FileID string        `json:"file_id,omitempty"`
}

type jsonBody struct {
	FileKey    *string `json:"file_key"`
	Text       *string `json:"text"`
	SourceLang string  `json:"source_lang"`
	TargetLang string  `json:"target_lang"`
}

// HandleRequest serves a synchronous API request.
func (d *Dispatcher) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	if httpapi.IsPreflight(req) {
		return httpapi.Preflight()
	}

	apiKey := httpapi.Header(req.Headers, "x-api-key")
	if apiKey == "" {
		return httpapi.Error(http.StatusUnauthorized, "API key is required")
	}
	who, err := d.resolver.Resolve(ctx, apiKey)
	if err != nil {
		d.logger.InfoContext(ctx, "rejected api key", "error", err)
		return httpapi.Error(http.StatusForbidden, "Invalid API key")
	}

	if size := d.requestSize(req); size > d.opts.MaxPayload {
		return httpapi.JSON(http.StatusRequestEntityTooLarge, PayloadTooLargeResponse{
			Error:        "Payload size exceeds limit of " + strconv.Itoa(d.opts.MaxPayload) + " bytes",
			MaxSize:      d.opts.MaxPayload,
			ReceivedSize: size,
		})
	}

	if req.Body == "" {
		return httpapi.Error(http.StatusBadRequest, "Request body is empty")
	}

	content, err := decodeBody(req)
	if err != nil {
		return httpapi.ErrorDetails(http.StatusBadRequest, "Invalid content", err.Error())
	}

	if _, err := csvcodec.Sniff(csvcodec.Sample(content, classifyLines)); err == nil {
		return d.handleCSV(ctx, req, who, content)
	}
	return d.handleJSON(ctx, who, content)
}

// requestSize is the declared Content-Length, or the body length when the
// header is absent or unparsable.
func (d *Dispatcher) requestSize(req events.APIGatewayProxyRequest) int {
	if v := httpapi.Header(req.Headers, "content-length"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			return n
		}
	}
	return len(req.Body)
}

func decodeBody(req events.APIGatewayProxyRequest) (string, error) {
	if !req.IsBase64Encoded {
		return req.Body, nil
	}
	raw, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *Dispatcher) handleCSV(ctx context.Context, req events.APIGatewayProxyRequest, who domain.Identity, content string) events.APIGatewayProxyResponse {
	langs := domain.Languages{
		Source: req.QueryStringParameters["source_lang"],
		Target: req.QueryStringParameters["target_lang"],
	}.WithDefaults(d.opts.Languages)
	if err := langs.Validate(); err != nil {
		return httpapi.ErrorDetails(http.StatusBadRequest, "Invalid languages", err.Error())
	}

	rec, err := d.createRecord(ctx, func(id string) domain.JobRecord {
		return domain.NewJobRecord(id, d.now(), who, DirectUploadFile, d.opts.OutputBucket, langs)
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to create job record", "error", err)
		return httpapi.Error(http.StatusInternalServerError, err.Error())
	}

	res, err := d.runner.Run(ctx, pipeline.Job{
		FileID:     rec.FileID,
		Timestamp:  rec.Timestamp,
		Content:    []byte(content),
		SourceName: pipeline.DirectUploadName,
		Languages:  langs,
	})
	if err != nil {
		return httpapi.JSON(http.StatusInternalServerError, FailedResult{
			Error:  err.Error(),
			Status: domain.StatusFailed,
			FileID: rec.FileID,
		})
	}

	return httpapi.JSON(http.StatusOK, CSVResult{
		Status:         res.Status,
		FileID:         res.FileID,
		Content:        res.Document.Records(),
		TranslatedFile: res.TranslatedFile(),
	})
}

func (d *Dispatcher) handleJSON(ctx context.Context, who domain.Identity, content string) events.APIGatewayProxyResponse {
	var body jsonBody
	if err := json.Unmarshal([]byte(content), &body); err != nil {
		return httpapi.JSON(http.StatusBadRequest, UnknownContentResponse{
			Error:          "Could not determine content type. Please specify valid Content-Type header",
			SuggestedTypes: []string{"text/csv", "application/json"},
		})
	}

	langs := domain.Languages{Source: body.SourceLang, Target: body.TargetLang}.WithDefaults(d.opts.Languages)

	switch {
	case body.FileKey != nil && strings.TrimSpace(*body.FileKey) != "":
		src := domain.ParseObjectURI(*body.FileKey, d.opts.InputBucket)
		res, err := d.Enqueue(ctx, src, who, langs)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to queue file", "source", src.String(), "error", err)
			return httpapi.Error(httpapi.StatusFor(err), err.Error())
		}
		return httpapi.JSON(http.StatusOK, res)

	case body.Text != nil:
		out, err := d.runner.TranslateText(ctx, *body.Text, langs)
		if err != nil {
			status := httpapi.StatusFor(err)
			if status == http.StatusBadRequest {
				return httpapi.ErrorDetails(status, "Invalid languages", err.Error())
			}
			d.logger.ErrorContext(ctx, "text translation failed", "error", err)
			return httpapi.Error(status, err.Error())
		}
		return httpapi.JSON(http.StatusOK, TextResult{
			TranslatedText: out,
			Status:         domain.StatusCompleted,
			SourceLang:     langs.Source,
			TargetLang:     langs.Target,
		})

	default:
		return httpapi.Error(http.StatusBadRequest, "Invalid JSON structure")
	}
}
