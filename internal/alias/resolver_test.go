package alias

import "testing"

func registeredSet(names ...string) IsRegistered {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(p string) bool { return set[p] }
}

func TestResolve_KnownAlias(t *testing.T) {
	r := New(Config{
		"cheapest": {{Provider: "a", ModelID: "m1", Priority: 1}, {Provider: "b", ModelID: "m2", Priority: 2}},
	}, registeredSet("a", "b"), nil)

	got := r.Resolve("cheapest")
	if len(got) != 2 || got[0].Provider != "a" {
		t.Fatalf("unexpected resolution: %+v", got)
	}
}

func TestResolve_FiltersUnregisteredProviders(t *testing.T) {
	r := New(Config{
		"cheapest": {{Provider: "a", ModelID: "m1", Priority: 1}, {Provider: "gone", ModelID: "m2", Priority: 2}},
	}, registeredSet("a"), nil)

	got := r.Resolve("cheapest")
	if len(got) != 1 || got[0].Provider != "a" {
		t.Fatalf("expected only registered provider to remain, got %+v", got)
	}
}

func TestResolve_ExplicitProviderModelSelector(t *testing.T) {
	r := New(Config{}, registeredSet("openai"), nil)

	got := r.Resolve("openai:gpt-4")
	if len(got) != 1 || got[0].Provider != "openai" || got[0].ModelID != "gpt-4" {
		t.Fatalf("unexpected resolution: %+v", got)
	}
}

func TestResolve_ExplicitProviderModelSelector_UnregisteredProvider(t *testing.T) {
	r := New(Config{}, registeredSet("openai"), nil)

	got := r.Resolve("anthropic:claude-3")
	if got != nil {
		t.Fatalf("expected nil for unregistered provider, got %+v", got)
	}
}

func TestResolve_BareModelIDScan(t *testing.T) {
	allModels := func() []Entry {
		return []Entry{
			{Provider: "openai", ModelID: "gpt-4"},
			{Provider: "azure", ModelID: "gpt-4"},
			{Provider: "anthropic", ModelID: "claude-3"},
		}
	}
	r := New(Config{}, registeredSet("openai", "azure", "anthropic"), allModels)

	got := r.Resolve("gpt-4")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches for bare model id scan, got %+v", got)
	}
}

func TestResolve_FallsBackToBalanced(t *testing.T) {
	r := New(Config{
		"balanced": {{Provider: "a", ModelID: "m1", Priority: 1}},
	}, registeredSet("a"), func() []Entry { return nil })

	got := r.Resolve("nonexistent-selector")
	if len(got) != 1 || got[0].Provider != "a" {
		t.Fatalf("expected fallback to balanced, got %+v", got)
	}
}

func TestResolve_PriorityOrderingAscending(t *testing.T) {
	r := New(Config{
		"best": {
			{Provider: "b", ModelID: "m2", Priority: 5},
			{Provider: "a", ModelID: "m1", Priority: 1},
		},
	}, registeredSet("a", "b"), nil)

	got := r.Resolve("best")
	if got[0].Provider != "a" || got[1].Provider != "b" {
		t.Fatalf("expected ascending priority order, got %+v", got)
	}
}

func TestRequiredAliases_SeededWhenAbsent(t *testing.T) {
	r := New(Config{}, registeredSet(), nil)
	for _, name := range RequiredAliases {
		if _, ok := r.static[name]; !ok {
			t.Fatalf("expected required alias %q to be seeded", name)
		}
	}
}

func TestSet_RebuildsTable(t *testing.T) {
	r := New(Config{}, registeredSet("a"), nil)
	r.Set("cheapest", []Entry{{Provider: "a", ModelID: "m1", Priority: 1}})

	got := r.Resolve("cheapest")
	if len(got) != 1 || got[0].Provider != "a" {
		t.Fatalf("expected Set to update the live table, got %+v", got)
	}
}
