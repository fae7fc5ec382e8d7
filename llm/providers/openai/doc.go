// Package openai adapts OpenAI's Chat Completions API to the llm.Provider
// interface. It is a thin wrapper around openaicompat.Provider that adds
// OpenAI-specific request headers (Authorization, Organization).
package openai
