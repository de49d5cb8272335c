// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package personas holds the named persona configurations the gateway can
// serve.
//
// A persona bundles a display name, a backend provider kind, a model
// identifier, sampling parameters, and a system-prompt generator. Prompt
// generation is a pure function of an explicit PromptContext, so any
// time-of-day or random flavor in a prompt is reproducible under test by
// fixing the context.
package personas

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/nightcord/nako-gateway/llm"
)

// ProviderKind selects which backend implementation serves a persona.
type ProviderKind string

const (
	// ProviderRunner routes to the local model-runner service.
	ProviderRunner ProviderKind = "runner"

	// ProviderOpenAI routes to a remote OpenAI-compatible endpoint.
	ProviderOpenAI ProviderKind = "openai"
)

// DefaultPersona is served when the caller does not select one.
const DefaultPersona = "nako"

// PromptContext carries every input a system-prompt generator may vary on.
//
// # Description
//
// Generators must not reach for time.Now or package-level randomness; all
// variation flows through this struct so a fixed context yields a fixed
// prompt.
type PromptContext struct {
	Now  time.Time
	Rand *rand.Rand
}

// NewPromptContext builds a context from the wall clock and a fresh
// time-seeded source. Tests construct the struct directly instead.
func NewPromptContext() PromptContext {
	return PromptContext{
		Now:  time.Now(),
		Rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Config is one persona definition.
type Config struct {
	// Name is the persona's display name, used inside prompts. Role
	// mapping compares history turns against the registry selector,
	// not this.
	Name string

	// Provider selects the backend implementation.
	Provider ProviderKind

	// Model is the model identifier to request. Empty means the backend's
	// configured default.
	Model string

	// Sampling are the generation parameters for this persona.
	Sampling llm.SamplingParams

	// SystemPrompt generates the system message for one request.
	SystemPrompt func(ctx PromptContext) string
}

// registry maps the persona selector value to its configuration.
var registry = map[string]*Config{
	"nako":  nakoPersona,
	"asagi": asagiPersona,
	"miku":  mikuPersona,
	"yui":   yuiPersona,
}

// Get returns the persona for the given selector, defaulting to
// DefaultPersona when the selector is empty.
//
// # Outputs
//
//   - *Config: The persona configuration.
//   - error: Unknown selector, listing the available names.
func Get(name string) (*Config, error) {
	if name == "" {
		name = DefaultPersona
	}
	config, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown persona: %s. Available: %s", name, strings.Join(Names(), ", "))
	}
	return config, nil
}

// Names returns the available persona selectors, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// shanghaiLocation is resolved once; personas speak Chinese and anchor
// their sense of time to China Standard Time regardless of server zone.
var shanghaiLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}()

var chineseWeekdays = [7]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// localClock converts the context clock to China Standard Time.
func localClock(now time.Time) time.Time {
	return now.In(shanghaiLocation)
}

// clockString formats the context clock the way the personas quote it,
// e.g. "2025/06/14 星期六 21:30".
func clockString(now time.Time) string {
	local := localClock(now)
	return fmt.Sprintf("%s %s %s",
		local.Format("2006/01/02"),
		chineseWeekdays[local.Weekday()],
		local.Format("15:04"))
}

// pick selects one entry from a flavor table using the context source.
func pick(r *rand.Rand, table []string) string {
	return table[r.Intn(len(table))]
}
