package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ferro-labs/model-gateway/providers"
)

// envProvider describes how to construct one provider from an API-key
// environment variable, mirroring the teacher's cmd/ferrogw auto-registration
// table (internal/ferro-labs-ai-gateway/cmd/ferrogw/main.go).
type envProvider struct {
	envKey string
	name   string
	create func(key, baseURL string) (providers.Provider, error)
}

var envProviders = []envProvider{
	{"OPENAI_API_KEY", "openai", func(k, b string) (providers.Provider, error) { return providers.NewOpenAI(k, b) }},
	{"ANTHROPIC_API_KEY", "anthropic", func(k, b string) (providers.Provider, error) { return providers.NewAnthropic(k, b) }},
	{"GROQ_API_KEY", "groq", func(k, b string) (providers.Provider, error) { return providers.NewGroq(k, b) }},
	{"TOGETHER_API_KEY", "together", func(k, b string) (providers.Provider, error) { return providers.NewTogether(k, b) }},
	{"GEMINI_API_KEY", "gemini", func(k, b string) (providers.Provider, error) { return providers.NewGemini(k, b) }},
	{"MISTRAL_API_KEY", "mistral", func(k, b string) (providers.Provider, error) { return providers.NewMistral(k, b) }},
	{"COHERE_API_KEY", "cohere", func(k, b string) (providers.Provider, error) { return providers.NewCohere(k, b) }},
	{"DEEPSEEK_API_KEY", "deepseek", func(k, b string) (providers.Provider, error) { return providers.NewDeepSeek(k, b) }},
	{"FIREWORKS_API_KEY", "fireworks", func(k, b string) (providers.Provider, error) { return providers.NewFireworks(k, b) }},
	{"PERPLEXITY_API_KEY", "perplexity", func(k, b string) (providers.Provider, error) { return providers.NewPerplexity(k, b) }},
	{"AI21_API_KEY", "ai21", func(k, b string) (providers.Provider, error) { return providers.NewAI21(k, b) }},
}

// autoRegisterProviders constructs every provider whose API-key environment
// variable is set and registers it against gw. Azure OpenAI, Bedrock and
// Ollama need additional parameters beyond a single key so they are wired
// separately, same as the teacher's server entry point.
func autoRegisterProviders(gw registerer) []string {
	var registered []string

	for _, ep := range envProviders {
		key := os.Getenv(ep.envKey)
		if key == "" {
			continue
		}
		p, err := ep.create(key, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s provider: %v\n", ep.name, err)
			continue
		}
		gw.RegisterProvider(p)
		registered = append(registered, ep.name)
	}

	if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" {
		baseURL := os.Getenv("AZURE_OPENAI_ENDPOINT")
		deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		apiVersion := os.Getenv("AZURE_OPENAI_API_VERSION")
		if baseURL != "" && deployment != "" {
			p, err := providers.NewAzureOpenAI(key, baseURL, deployment, apiVersion)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: azure-openai provider: %v\n", err)
			} else {
				gw.RegisterProvider(p)
				registered = append(registered, "azure-openai")
			}
		} else {
			fmt.Fprintln(os.Stderr, "warning: AZURE_OPENAI_API_KEY set but AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_DEPLOYMENT are required")
		}
	}

	if region := os.Getenv("AWS_REGION"); region != "" && os.Getenv("BEDROCK_ENABLED") != "" {
		p, err := providers.NewBedrock(region)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: bedrock provider: %v\n", err)
		} else {
			gw.RegisterProvider(p)
			registered = append(registered, "bedrock")
		}
	}

	if key := os.Getenv("REPLICATE_API_KEY"); key != "" {
		var textModels, imageModels []string
		if m := os.Getenv("REPLICATE_TEXT_MODELS"); m != "" {
			textModels = strings.Split(m, ",")
		}
		if m := os.Getenv("REPLICATE_IMAGE_MODELS"); m != "" {
			imageModels = strings.Split(m, ",")
		}
		p, err := providers.NewReplicate(key, os.Getenv("REPLICATE_BASE_URL"), textModels, imageModels)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: replicate provider: %v\n", err)
		} else {
			gw.RegisterProvider(p)
			registered = append(registered, "replicate")
		}
	}

	if ollamaURL := os.Getenv("OLLAMA_HOST"); ollamaURL != "" {
		var models []string
		if m := os.Getenv("OLLAMA_MODELS"); m != "" {
			models = strings.Split(m, ",")
		}
		p, err := providers.NewOllama(ollamaURL, models)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: ollama provider: %v\n", err)
		} else {
			gw.RegisterProvider(p)
			registered = append(registered, "ollama")
		}
	}

	return registered
}

// registerer is the minimal subset of *aigateway.Gateway the auto-register
// helper needs, kept narrow so it can be unit tested against a fake.
type registerer interface {
	RegisterProvider(p providers.Provider)
}
