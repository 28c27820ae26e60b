package advisory

import (
	"context"
	"strings"
	"testing"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

type fakeLLM struct {
	calls      int
	completion string
	tokens     int
	err        error
	lastPrompt string
}

func (f *fakeLLM) Complete(ctx context.Context, promptID, promptVersion, prompt string, maxTokens int) (string, int, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", 0, f.err
	}
	return f.completion, f.tokens, nil
}

func TestCollaboratorScrubsPromptBeforeSending(t *testing.T) {
	fake := &fakeLLM{completion: "looks fine", tokens: 10}
	c := NewCollaborator(fake, DefaultCollaboratorConfig())

	_, err := c.Complete(context.Background(), "tenant-1", "risk_summary", map[string]interface{}{
		"model": "orders owned by alice@example.com", "score": 7.5, "downstream_depth": 3, "failure_rate": 0.1,
	}, 100)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
	if strings.Contains(fake.lastPrompt, "alice@example.com") || !strings.Contains(fake.lastPrompt, "<EMAIL>") {
		t.Errorf("prompt sent = %q, want the email replaced by <EMAIL>", fake.lastPrompt)
	}
}

func TestCollaboratorCachesIdenticalCalls(t *testing.T) {
	fake := &fakeLLM{completion: "cached response", tokens: 10}
	c := NewCollaborator(fake, DefaultCollaboratorConfig())

	data := map[string]interface{}{"model": "orders", "score": 5.0, "downstream_depth": 1, "failure_rate": 0.0}
	first, err := c.Complete(context.Background(), "tenant-1", "risk_summary", data, 50)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	second, err := c.Complete(context.Background(), "tenant-1", "risk_summary", data, 50)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if first != second {
		t.Errorf("responses differ: %q != %q", first, second)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1 (second call should hit cache)", fake.calls)
	}
}

func TestCollaboratorRefusesOverBudget(t *testing.T) {
	fake := &fakeLLM{completion: "x", tokens: 10}
	c := NewCollaborator(fake, DefaultCollaboratorConfig())
	c.SetBudget("tenant-1", BudgetState{DailyBudgetUSD: 1.0, SpentUSD: 1.0})

	_, err := c.Complete(context.Background(), "tenant-1", "risk_summary", map[string]interface{}{
		"model": "orders", "score": 5.0, "downstream_depth": 1, "failure_rate": 0.0,
	}, 50)
	if err == nil {
		t.Fatal("expected budget exceeded error")
	}
	se := ironerrors.As(err)
	if se == nil || se.Code != ironerrors.ErrCodeBudgetExceeded {
		t.Errorf("error = %v, want BudgetExceeded", err)
	}
	if fake.calls != 0 {
		t.Errorf("calls = %d, want 0 (refused before reaching the collaborator)", fake.calls)
	}
}

func TestCollaboratorUnknownPromptIDErrors(t *testing.T) {
	fake := &fakeLLM{completion: "x"}
	c := NewCollaborator(fake, DefaultCollaboratorConfig())
	_, err := c.Complete(context.Background(), "tenant-1", "does_not_exist", nil, 10)
	if err == nil {
		t.Fatal("expected error for unknown prompt id")
	}
}
