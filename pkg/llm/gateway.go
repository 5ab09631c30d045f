// Package llm implements C3, the LLM Gateway: the single entry point every
// other component uses to call the configured generative model. It looks
// up the per-task temperature, delegates to a Provider, wraps the call in
// a circuit breaker, and emits an LLM_CALL metric record. It never retries
// and never fabricates output.
package llm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/adronaut/strategist-core/internal/apperrors"
	"github.com/adronaut/strategist-core/internal/config"
	"github.com/adronaut/strategist-core/pkg/sharedlog"
	"github.com/sirupsen/logrus"
)

// CallRecord is the LLM_CALL metric record emitted after every call,
// success or failure.
type CallRecord struct {
	Task           config.TaskKind
	Provider       string
	Model          string
	Temperature    float32
	LatencyMS      int64
	PromptLength   int
	ResponseLength int
	Success        bool
	Error          string
}

// Gateway is C3. One Gateway wraps one configured Provider for the life of
// the process; provider selection happens once at startup.
type Gateway struct {
	provider Provider
	cfg      config.LLMConfig
	breaker  *gobreaker.CircuitBreaker
	logger   *logrus.Logger
	debug    atomic.Bool
}

// New builds a Gateway around provider. Logger may be nil, in which case a
// default logrus logger (info level, stderr) is used.
func New(provider Provider, cfg config.LLMConfig, logger *logrus.Logger) *Gateway {
	if logger == nil {
		logger = logrus.New()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-gateway",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Gateway{provider: provider, cfg: cfg, breaker: breaker, logger: logger}
}

// Call submits prompt to the configured model for task, applying that
// task's temperature. It makes exactly one attempt: on provider failure it
// fails with a ProviderError, never retries, never mutates state. The
// breaker exists to fail fast across calls once the provider is clearly
// down; it does not add retries within a single Call.
func (g *Gateway) Call(ctx context.Context, task config.TaskKind, prompt string) (string, error) {
	temperature := g.cfg.TemperatureFor(task)
	model := g.cfg.ModelFor(task)
	start := time.Now()

	if g.debug.Load() {
		g.logger.WithFields(sharedlog.NewFields().Component("llm_gateway").Operation(string(task)).Logrus()).
			WithField("prompt", prompt).Debug("llm request")
	}

	result, breakerErr := g.breaker.Execute(func() (interface{}, error) {
		return g.provider.Complete(ctx, prompt, model, temperature, g.cfg.MaxTokens)
	})

	latency := time.Since(start)
	record := CallRecord{
		Task:         task,
		Provider:     g.cfg.Provider,
		Model:        model,
		Temperature:  temperature,
		LatencyMS:    latency.Milliseconds(),
		PromptLength: len(prompt),
	}

	if breakerErr != nil {
		record.Success = false
		record.Error = breakerErr.Error()
		g.emit(record)
		g.logger.WithFields(sharedlog.NewFields().Component("llm_gateway").Operation(string(task)).Error(breakerErr).Logrus()).
			Warn("llm call failed")
		if breakerErr == gobreaker.ErrOpenState || breakerErr == gobreaker.ErrTooManyRequests {
			return "", apperrors.NewProviderError(fmt.Sprintf("circuit breaker open for task %s", task))
		}
		return "", apperrors.Wrap(breakerErr, apperrors.ErrorTypeProvider, fmt.Sprintf("llm call failed for task %s", task))
	}

	text, _ := result.(string)
	record.Success = true
	record.ResponseLength = len(text)
	g.emit(record)
	if g.debug.Load() {
		g.logger.WithFields(sharedlog.NewFields().Component("llm_gateway").Operation(string(task)).Duration(latency).Logrus()).
			WithField("response", text).Debug("llm response")
	}
	return text, nil
}

// SetDebug toggles verbose request/response logging at runtime; the
// composition root wires it to the config watcher so the flag follows
// hot reloads without restarting suspended runs.
func (g *Gateway) SetDebug(enabled bool) {
	g.debug.Store(enabled)
}

func (g *Gateway) emit(record CallRecord) {
	success := "false"
	if record.Success {
		success = "true"
	}
	callTotal.WithLabelValues(string(record.Task), record.Provider, record.Model, success).Inc()
	callLatency.WithLabelValues(string(record.Task), record.Provider, record.Model).Observe(float64(record.LatencyMS))
	callPromptLength.WithLabelValues(string(record.Task)).Observe(float64(record.PromptLength))
	if record.Success {
		callResponseLength.WithLabelValues(string(record.Task)).Observe(float64(record.ResponseLength))
	}
}
