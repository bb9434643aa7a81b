package providers

import "testing"

func testRegistryConfig() RegistryConfig {
	return RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"gemini": {
				Type:      "gemini",
				Model:     "gemini-2.5-flash",
				APIKey:    "key-1",
				RateLimit: 10,
				Enabled:   true,
			},
		},
		DefaultProvider: "gemini",
	}
}

func TestRegistryFromConfig(t *testing.T) {
	r := NewRegistryFromConfig(testRegistryConfig())

	if !r.HasLLM("gemini") {
		t.Fatal("gemini not registered")
	}
	client, err := r.Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if client.Name() != GeminiName {
		t.Errorf("default client = %q", client.Name())
	}
}

func TestRegistrySkipsDisabledAndKeyless(t *testing.T) {
	cfg := testRegistryConfig()
	cfg.LLMProviders["disabled"] = LLMProviderConfig{Type: "gemini", APIKey: "k", Enabled: false}
	cfg.LLMProviders["nokey"] = LLMProviderConfig{Type: "gemini", Enabled: true}

	r := NewRegistryFromConfig(cfg)
	if r.HasLLM("disabled") || r.HasLLM("nokey") {
		t.Error("disabled or keyless provider registered")
	}
}

func TestRegistryReload(t *testing.T) {
	cfg := testRegistryConfig()
	r := NewRegistryFromConfig(cfg)

	first, _ := r.GetLLM("gemini")

	// Unchanged config keeps the same client instance.
	r.Reload(cfg)
	same, _ := r.GetLLM("gemini")
	if first != same {
		t.Error("unchanged provider was recreated on reload")
	}

	// Changed key recreates the client.
	cfg.LLMProviders["gemini"] = LLMProviderConfig{
		Type: "gemini", Model: "gemini-2.5-flash", APIKey: "key-2", RateLimit: 10, Enabled: true,
	}
	r.Reload(cfg)
	updated, _ := r.GetLLM("gemini")
	if first == updated {
		t.Error("changed provider was not recreated on reload")
	}

	// Removed provider is unregistered.
	r.Reload(RegistryConfig{LLMProviders: map[string]LLMProviderConfig{}})
	if r.HasLLM("gemini") {
		t.Error("removed provider still registered")
	}
}
