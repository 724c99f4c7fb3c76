package router

import (
	"context"
	"testing"
	"time"

	"github.com/ferro-labs/model-gateway/internal/alias"
	"github.com/ferro-labs/model-gateway/internal/health"
	"github.com/ferro-labs/model-gateway/internal/pool"
	"github.com/ferro-labs/model-gateway/internal/weight"
)

func TestDeriveFeatures_ComplexityFromPromptLength(t *testing.T) {
	cases := []struct {
		length int
		want   Complexity
	}{
		{50, ComplexitySimple},
		{500, ComplexityMedium},
		{5000, ComplexityComplex},
	}
	for _, c := range cases {
		got := DeriveFeatures(c.length, "", "")
		if got.Complexity != c.want {
			t.Errorf("length=%d: want %s, got %s", c.length, c.want, got.Complexity)
		}
	}
}

func TestDeriveFeatures_UrgentTaskType(t *testing.T) {
	got := DeriveFeatures(500, "", "triage")
	if got.Urgency != SensitivityHigh {
		t.Fatalf("expected urgency=high for triage, got %s", got.Urgency)
	}
	if got.CostSensitivity != SensitivityHigh {
		t.Fatalf("expected cost_sensitivity=high when urgency=high, got %s", got.CostSensitivity)
	}
}

func TestDeriveFeatures_QualityRequirement(t *testing.T) {
	got := DeriveFeatures(50, "", "critique")
	if got.QualityRequirement != SensitivityHigh {
		t.Fatalf("expected quality_requirement=high for critique, got %s", got.QualityRequirement)
	}
}

func TestSelectSelector_TaskRoutingTableWins(t *testing.T) {
	r := &Router{TaskRoutes: map[string]string{"critique": "powerful"}}
	selector := r.SelectSelector(Request{TaskType: "critique", Selector: "fastest"}, Features{})
	if selector != "powerful" {
		t.Fatalf("expected task_routing table to win, got %s", selector)
	}
}

func TestSelectSelector_CostOptimizationSimple(t *testing.T) {
	r := &Router{}
	selector := r.SelectSelector(Request{CostOptimize: true}, Features{Complexity: ComplexitySimple})
	if selector != "cheapest" {
		t.Fatalf("expected cheapest for cost-optimized simple request, got %s", selector)
	}
}

func TestSelectSelector_DefaultsToBalanced(t *testing.T) {
	r := &Router{}
	selector := r.SelectSelector(Request{}, Features{Complexity: ComplexityMedium})
	if selector != "balanced" {
		t.Fatalf("expected default balanced, got %s", selector)
	}
}

func newTestRouter() (*Router, *alias.Resolver, *weight.Manager, *health.Monitor, *pool.Registry) {
	reg := map[string]bool{"a": true, "b": true}
	isReg := func(p string) bool { return reg[p] }

	aliases := alias.New(alias.Config{
		"balanced": {
			{Provider: "a", ModelID: "m1", Priority: 1},
			{Provider: "b", ModelID: "m2", Priority: 2},
		},
	}, isReg, nil)

	weights := weight.New(weight.Config{})
	weights.Register("a", 1.0)
	weights.Register("b", 1.0)

	healthMon := health.New(health.Config{})
	healthMon.Register("a", nil)
	healthMon.Register("b", nil)

	pools := pool.NewRegistry()
	pools.Register("a", 10)
	pools.Register("b", 10)

	return &Router{Aliases: aliases, Weights: weights, Health: healthMon, Pools: pools}, aliases, weights, healthMon, pools
}

func TestRoute_OrdersByDescendingScore(t *testing.T) {
	r, _, weights, _, _ := newTestRouter()
	weights.ReportOutcome("a", 3*time.Second, 0.01, true, 1.0)
	weights.ReportOutcome("b", 200*time.Millisecond, 0.001, true, 1.0)

	candidates := r.Route(context.Background(), Request{Prompt: "hello"})
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Provider != "b" {
		t.Fatalf("expected faster/cheaper provider b to rank first, got %+v", candidates)
	}
}

func TestRoute_UnhealthyProviderPenalized(t *testing.T) {
	r, _, _, healthMon, _ := newTestRouter()

	for i := 0; i < 6; i++ {
		healthMon.ReportOutcome("a", 0, context.DeadlineExceeded, "timeout")
	}

	candidates := r.Route(context.Background(), Request{Prompt: "hello"})
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Provider != "b" {
		t.Fatalf("expected healthy provider b to rank first over unhealthy a, got %+v", candidates)
	}
}

func TestRoute_PoolFullPenalized(t *testing.T) {
	r, _, _, _, pools := newTestRouter()
	pools.Register("a", 1)
	p := pools.Get("a")
	p.TryAcquire() // fill the only slot

	candidates := r.Route(context.Background(), Request{Prompt: "hello"})
	if candidates[0].Provider != "b" {
		t.Fatalf("expected provider with available pool capacity to rank first, got %+v", candidates)
	}
}
