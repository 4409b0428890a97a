// Smartchat is a command-line front end for the chat translation layer.
//
// It speaks one canonical request/response schema to many LLM provider
// APIs (OpenAI and compatibles, Anthropic, Gemini, Cohere, Ollama),
// providing:
//   - Buffered and streaming chat completions
//   - Cached model catalogs with scheduled refresh
//   - Credential verification per provider
//   - Token estimation for prompt budgeting
//
// Usage:
//
//	# One-shot completion with the configured provider
//	smartchat chat "summarize this repo"
//
//	# Stream from a specific provider and model
//	smartchat chat --provider anthropic --model claude-sonnet-4 "hello"
//
//	# List cached models, bypassing the cache
//	smartchat models --refresh
//
//	# Verify an API key
//	smartchat credentials --provider openai
//
//	# Estimate prompt tokens
//	smartchat tokens "how many tokens is this?"
package main

func main() {
	Execute()
}
