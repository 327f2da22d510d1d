// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Config holds configuration for the chat-completion service.
type Config struct {
	// Host is the base URL for the chat-completion API.
	// Example: "https://api.openai.com/v1" or "http://localhost:11434/v1"
	Host string

	// Token is the API key. An empty token selects the simulated assistant.
	Token string

	// Model is the model identifier used for chat completions.
	// Example: "gpt-4-turbo", "gpt-3.5-turbo"
	Model string

	// Temperature is the sampling temperature, 0 to 2.
	// Default: 0.7
	Temperature float64

	// MaxTokens caps the length of each completion.
	// Default: 1000
	MaxTokens int

	// AssistantName is how the assistant introduces itself.
	AssistantName string

	// UserName is how the assistant addresses the user.
	UserName string

	// PrioritizeMemory asks the assistant to lean on earlier turns.
	PrioritizeMemory bool
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithToken sets the API key.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.Token = token
	}
}

// WithModel sets the chat model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = temperature
	}
}

// WithMaxTokens sets the completion length cap.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithNames sets the assistant and user display names.
func WithNames(assistant, user string) ConfigOption {
	return func(c *Config) {
		c.AssistantName = assistant
		c.UserName = user
	}
}

// WithPrioritizeMemory toggles reliance on earlier turns.
func WithPrioritizeMemory(enabled bool) ConfigOption {
	return func(c *Config) {
		c.PrioritizeMemory = enabled
	}
}

// DefaultConfig returns a Config for the OpenAI API with no token set.
func DefaultConfig() *Config {
	return &Config{
		Host:          "https://api.openai.com/v1",
		Model:         "gpt-4-turbo",
		Temperature:   0.7,
		MaxTokens:     1000,
		AssistantName: "هوشی",
		UserName:      "کاربر",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithToken(os.Getenv("OPENAI_API_KEY")),
//	    WithModel("gpt-3.5-turbo"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Simulated reports whether no API key is configured, in which case the
// assistant answers locally.
func (c *Config) Simulated() bool {
	return c.Token == ""
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the host if missing, which is required
// by most OpenAI-compatible APIs.
func (c *Config) Normalize() {
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	if c.MaxTokens < 1 {
		return errors.New("ai config: MaxTokens must be positive")
	}
	return nil
}

// CallOptions returns the per-call options matching the configuration.
func (c *Config) CallOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithModel(c.Model),
		llms.WithTemperature(c.Temperature),
		llms.WithMaxTokens(c.MaxTokens),
	}
}
