package main

import (
	"testing"

	"github.com/ferro-labs/model-gateway/providers"
)

type fakeRegisterer struct {
	names []string
}

func (f *fakeRegisterer) RegisterProvider(p providers.Provider) {
	f.names = append(f.names, p.Name())
}

func TestAutoRegisterProviders_NoKeysSet(t *testing.T) {
	for _, ep := range envProviders {
		t.Setenv(ep.envKey, "")
	}
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("BEDROCK_ENABLED", "")
	t.Setenv("REPLICATE_API_KEY", "")

	reg := &fakeRegisterer{}
	got := autoRegisterProviders(reg)
	if len(got) != 0 {
		t.Errorf("expected no providers registered, got %v", got)
	}
}

func TestAutoRegisterProviders_OpenAIKeySet(t *testing.T) {
	for _, ep := range envProviders {
		t.Setenv(ep.envKey, "")
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("BEDROCK_ENABLED", "")
	t.Setenv("REPLICATE_API_KEY", "")

	reg := &fakeRegisterer{}
	got := autoRegisterProviders(reg)
	if len(got) != 1 || got[0] != "openai" {
		t.Errorf("expected only openai registered, got %v", got)
	}
	if len(reg.names) != 1 || reg.names[0] != "openai" {
		t.Errorf("expected gateway to have registered openai, got %v", reg.names)
	}
}

func TestAutoRegisterProviders_OllamaNeedsNoKey(t *testing.T) {
	for _, ep := range envProviders {
		t.Setenv(ep.envKey, "")
	}
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("BEDROCK_ENABLED", "")
	t.Setenv("REPLICATE_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")
	t.Setenv("OLLAMA_MODELS", "llama3.2,mistral")

	reg := &fakeRegisterer{}
	got := autoRegisterProviders(reg)
	if len(got) != 1 || got[0] != "ollama" {
		t.Errorf("expected only ollama registered, got %v", got)
	}
}

func TestAutoRegisterProviders_AzureRequiresEndpointAndDeployment(t *testing.T) {
	for _, ep := range envProviders {
		t.Setenv(ep.envKey, "")
	}
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("BEDROCK_ENABLED", "")
	t.Setenv("REPLICATE_API_KEY", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "azure-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "")

	reg := &fakeRegisterer{}
	got := autoRegisterProviders(reg)
	if len(got) != 0 {
		t.Errorf("expected azure-openai to be skipped without endpoint/deployment, got %v", got)
	}
}

func TestAutoRegisterProviders_ReplicateKeySet(t *testing.T) {
	for _, ep := range envProviders {
		t.Setenv(ep.envKey, "")
	}
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("BEDROCK_ENABLED", "")
	t.Setenv("REPLICATE_API_KEY", "r8-test")
	t.Setenv("REPLICATE_TEXT_MODELS", "meta/meta-llama-3.1-8b-instruct")
	t.Setenv("REPLICATE_IMAGE_MODELS", "black-forest-labs/flux-schnell")

	reg := &fakeRegisterer{}
	got := autoRegisterProviders(reg)
	if len(got) != 1 || got[0] != "replicate" {
		t.Errorf("expected only replicate registered, got %v", got)
	}
}
