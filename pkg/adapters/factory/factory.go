// Package factory constructs adapters from provider settings, selecting the
// translator dialect by provider family.
package factory

import (
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters/anthropic"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters/cohere"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters/gemini"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters/ollama"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters/openai"
)

// New resolves the provider's builtin config against the settings and builds
// an adapter with the family's translator. Deps.Translator is ignored; the
// factory supplies it.
func New(settings adapters.Settings, deps adapters.Deps) (*adapters.Adapter, error) {
	cfg, ok := adapters.Builtin(settings.Provider)
	if !ok {
		return nil, &adapters.UnknownProviderError{Provider: settings.Provider}
	}

	resolved, err := adapters.Resolve(cfg, settings)
	if err != nil {
		return nil, err
	}

	switch resolved.Family {
	case adapters.FamilyOpenAI:
		deps.Translator = openai.New(resolved, settings, deps.Logger)
	case adapters.FamilyAnthropic:
		deps.Translator = anthropic.New(resolved, settings, deps.Logger)
	case adapters.FamilyGemini:
		deps.Translator = gemini.New(resolved, settings, deps.Logger)
	case adapters.FamilyCohere:
		deps.Translator = cohere.New(resolved, settings, deps.Logger)
	case adapters.FamilyOllama:
		deps.Translator = ollama.New(resolved, settings, deps.Logger)
	default:
		return nil, &adapters.UnknownProviderError{Provider: settings.Provider}
	}

	return adapters.NewAdapter(resolved, settings, deps), nil
}
