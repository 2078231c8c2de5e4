// Package local implements the process-invoking upstream variant: an LLM
// reached by spawning a child CLI process and talking to it over
// stdin/stdout rather than an HTTP client. This is the "process-exec"
// tagged-struct branch alongside the HTTP-backed openai/anthropic
// adapters, composing the same shared request/response shapes rather than
// inheriting from them.
package local

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/providers"
	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// Config configures the local process-exec adapter.
type Config struct {
	Command string            `yaml:"command"` // e.g. "ollama"
	Args    []string          `yaml:"args"`     // static args prepended to every invocation
	WorkDir string            `yaml:"work_dir"`
	Models  []types.ModelInfo `yaml:"models"`
}

// Provider invokes a local child process per request, writing the
// rendered conversation to its stdin and reading its stdout as the
// completion. It never calls out over the network, so EstimateCost always
// reports zero and HealthCheck only confirms the binary is runnable.
type Provider struct {
	config *Config
	logger *logrus.Logger
}

// NewProvider builds a local process-exec provider.
func NewProvider(config *Config, logger *logrus.Logger) *Provider {
	return &Provider{config: config, logger: logger}
}

// GetProviderName returns the provider name.
func (p *Provider) GetProviderName() string {
	return "local"
}

// GetCapabilities returns the capabilities of the local provider.
func (p *Provider) GetCapabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{
		ProviderName:      "local",
		SupportedModels:   p.config.Models,
		SupportsStreaming: true,
		CostPer1KTokens:   types.CostStructure{InputCostPer1K: 0, OutputCostPer1K: 0, Currency: "USD"},
	}
}

// ChatCompletion runs the configured command once, blocking for the full
// completion.
func (p *Provider) ChatCompletion(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	start := time.Now()

	text, err := p.run(ctx, req)
	if err != nil {
		p.logger.WithError(err).Error("local provider command failed")
		return nil, fmt.Errorf("local provider command failed: %w", err)
	}

	usage := estimateUsage(req, text)

	return &types.ChatResponse{
		ID:      "local-" + strconv.FormatInt(start.UnixNano(), 36),
		Object:  "chat.completion",
		Created: start.Unix(),
		Model:   req.Model,
		Choices: []types.Choice{{
			Index:        0,
			Message:      types.Message{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
		Usage: &usage,
	}, nil
}

// StreamCompletion runs the configured command and relays its stdout line
// by line as it is produced. Cancelling ctx kills the child process
// (exec.CommandContext's documented behavior), matching the "child killed
// within one second of cancellation" requirement for streaming upstreams.
func (p *Provider) StreamCompletion(ctx context.Context, req *types.ChatRequest) (<-chan *types.ChatChunk, error) {
	cmd, stdout, err := p.start(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("local provider command failed to start: %w", err)
	}

	chunks := make(chan *types.ChatChunk, 16)
	created := time.Now().Unix()
	id := "local-" + strconv.FormatInt(time.Now().UnixNano(), 36)

	go func() {
		defer close(chunks)
		defer cmd.Wait()

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			chunk := &types.ChatChunk{
				ID:      id,
				Object:  "chat.completion.chunk",
				Created: created,
				Model:   req.Model,
				Choices: []types.ChoiceChunk{{
					Index: 0,
					Delta: &types.Message{Content: line + "\n"},
				}},
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}

		chunks <- &types.ChatChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []types.ChoiceChunk{{Index: 0, FinishReason: "stop"}},
		}
	}()

	return chunks, nil
}

// EstimateCost always reports zero cost: the local adapter runs on the
// gateway's own host rather than a metered upstream.
func (p *Provider) EstimateCost(req *types.ChatRequest) (*types.CostEstimate, error) {
	usage := estimateUsage(req, "")
	return &types.CostEstimate{
		InputTokens:  usage.PromptTokens,
		TotalTokens:  usage.PromptTokens,
		InputCost:    0,
		OutputCost:   0,
		TotalCost:    0,
	}, nil
}

// HealthCheck confirms the configured command resolves to a runnable
// binary, without actually invoking it.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.config.Command == "" {
		return fmt.Errorf("local provider: no command configured")
	}
	if _, err := exec.LookPath(p.config.Command); err != nil {
		return fmt.Errorf("local provider health check failed: %w", err)
	}
	return nil
}

func (p *Provider) run(ctx context.Context, req *types.ChatRequest) (string, error) {
	cmd := p.buildCmd(ctx, req)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (p *Provider) start(ctx context.Context, req *types.ChatRequest) (*exec.Cmd, *bufio.Reader, error) {
	cmd := p.buildCmd(ctx, req)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	return cmd, bufio.NewReader(stdoutPipe), nil
}

func (p *Provider) buildCmd(ctx context.Context, req *types.ChatRequest) *exec.Cmd {
	args := make([]string, 0, len(p.config.Args)+1)
	args = append(args, p.config.Args...)
	args = append(args, req.Model)

	cmd := exec.CommandContext(ctx, p.config.Command, args...)
	cmd.Dir = p.config.WorkDir
	cmd.Stdin = strings.NewReader(renderPrompt(req))
	return cmd
}

// renderPrompt flattens a chat conversation into a plain-text transcript,
// since a child process has no concept of structured chat messages.
func renderPrompt(req *types.ChatRequest) string {
	var b strings.Builder
	for _, msg := range req.Messages {
		content, _ := msg.Content.(string)
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, content)
	}
	return b.String()
}

// estimateUsage approximates token counts from character length, using the
// same rough 4-chars-per-token heuristic as the openai adapter's cost
// estimate.
func estimateUsage(req *types.ChatRequest, completion string) types.Usage {
	promptChars := 0
	for _, msg := range req.Messages {
		if content, ok := msg.Content.(string); ok {
			promptChars += len(content)
		}
	}
	promptTokens := promptChars / 4
	completionTokens := len(completion) / 4
	return types.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// Ensure Provider implements the core interface.
var _ providers.LLMProvider = (*Provider)(nil)
