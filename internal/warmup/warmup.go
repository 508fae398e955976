// Package warmup answers the scheduled keep-warm events sent to every
// function, fanning out to extra instances on request.
package warmup

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

const (
	// Source identifies warmup events from the scheduler.
	Source = "warmup"

	// Delay keeps this instance busy long enough for the fanned-out
	// invocations to land on other instances.
	Delay = 75 * time.Millisecond
)

// Event is the scheduled warmup payload.
type Event struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

// Response is returned by Handle.
type Response struct {
	StatusCode int  `json:"statusCode"`
	Body       Body `json:"body"`
}

// Body reports how many instances were warmed.
type Body struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// Invoker is the subset of the Lambda client used for self-invocation.
type Invoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Detect reports whether raw is a warmup event. It must run before any other
// decoding of the event.
func Detect(raw json.RawMessage) (*Event, bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	source, ok := fields["source"].(string)
	if !ok || source != Source {
		return nil, false
	}

	event := &Event{Source: source}
	if concurrency, ok := fields["concurrency"].(float64); ok && concurrency > 0 {
		event.Concurrency = int(concurrency)
	}
	return event, true
}

// Warmer handles warmup events for one function.
type Warmer struct {
	invoker      Invoker
	functionName string
	logger       *slog.Logger
	delay        time.Duration
}

// New creates a Warmer that self-invokes functionName. A nil invoker
// disables fan-out.
func New(invoker Invoker, functionName string, logger *slog.Logger) *Warmer {
	return &Warmer{invoker: invoker, functionName: functionName, logger: logger, delay: Delay}
}

// Handle warms this instance and, when event.Concurrency is positive,
// asynchronously invokes the function that many more times.
func (w *Warmer) Handle(ctx context.Context, event *Event) Response {
	warmed := 1
	if event.Concurrency > 0 && w.invoker != nil && w.functionName != "" {
		if err := w.selfInvoke(ctx, event.Concurrency); err != nil {
			w.logger.WarnContext(ctx, "warmup fan-out failed", "error", err)
		} else {
			warmed += event.Concurrency
		}
	}

	select {
	case <-time.After(w.delay):
	case <-ctx.Done():
	}

	return Response{StatusCode: 200, Body: Body{Status: "warm", InstancesWarmed: warmed}}
}

// selfInvoke sends count asynchronous warmup events with zero concurrency so
// the children do not fan out again.
func (w *Warmer) selfInvoke(ctx context.Context, count int) error {
	payload, err := json.Marshal(Event{Source: Source})
	if err != nil {
		return err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.invoker.Invoke(ctx, &lambda.InvokeInput{
				FunctionName:   aws.String(w.functionName),
				InvocationType: types.InvocationTypeEvent,
				Payload:        payload,
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}
