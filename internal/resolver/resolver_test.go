package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kalambet/mobi/internal/intent"
	"github.com/kalambet/mobi/internal/provider"
)

type fakeProvider struct {
	name      string
	priority  int
	available bool
	answer    string
	err       error
	panics    bool
	calls     int
}

func (f *fakeProvider) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Name:       f.name,
		Capability: provider.CapabilityFact,
		Priority:   f.priority,
		Available:  func() bool { return f.available },
	}
}

func (f *fakeProvider) Fetch(ctx context.Context, query string) (string, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.answer, f.err
}

func clients(fs ...*fakeProvider) []provider.Client {
	out := make([]provider.Client, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}

func TestResolveContinuesPastEmptyAndError(t *testing.T) {
	a := &fakeProvider{name: "a", priority: 0, available: true, answer: ""}
	b := &fakeProvider{name: "b", priority: 1, available: true, err: errors.New("connection refused")}
	c := &fakeProvider{name: "c", priority: 2, available: true, answer: "answer"}

	res := New().Resolve(context.Background(), intent.FactLookup, "q", clients(a, b, c))

	if res.Text != "answer" {
		t.Errorf("Text = %q, want %q", res.Text, "answer")
	}
	if res.Provider == nil || res.Provider.Name != "c" {
		t.Fatalf("Provider = %v, want c", res.Provider)
	}
	if res.Status != StatusSuccess {
		t.Errorf("Status = %s, want %s", res.Status, StatusSuccess)
	}
	wantOutcomes := []Outcome{OutcomeEmpty, OutcomeError, OutcomeSuccess}
	if len(res.Attempts) != len(wantOutcomes) {
		t.Fatalf("got %d attempts, want %d", len(res.Attempts), len(wantOutcomes))
	}
	for i, o := range wantOutcomes {
		if res.Attempts[i].Outcome != o {
			t.Errorf("Attempts[%d].Outcome = %s, want %s", i, res.Attempts[i].Outcome, o)
		}
	}
	if res.Attempts[1].Error == "" {
		t.Error("error attempt should carry the error text")
	}
}

func TestResolveFirstProviderSuccess(t *testing.T) {
	a := &fakeProvider{name: "a", available: true, answer: "  first  "}
	b := &fakeProvider{name: "b", priority: 1, available: true, answer: "second"}

	res := New().Resolve(context.Background(), intent.WebSearchFallback, "q", clients(a, b))
	if res.Text != "first" {
		t.Errorf("Text = %q, want %q", res.Text, "first")
	}
	if res.Status != StatusSuccess {
		t.Errorf("Status = %s, want %s", res.Status, StatusSuccess)
	}
	if b.calls != 0 {
		t.Errorf("second provider called %d times, want 0", b.calls)
	}
}

func TestResolveAllFail(t *testing.T) {
	a := &fakeProvider{name: "a", available: true, err: provider.ErrNotFound}
	b := &fakeProvider{name: "b", priority: 1, available: true, err: fmt.Errorf("wrapped: %w", provider.ErrNotFound)}
	c := &fakeProvider{name: "c", priority: 2, available: true, panics: true}

	res := New().Resolve(context.Background(), intent.ConversationalFallback, "q", clients(a, b, c))

	if res.Text != NothingFound {
		t.Errorf("Text = %q, want %q", res.Text, NothingFound)
	}
	if res.Status != StatusFailed {
		t.Errorf("Status = %s, want %s", res.Status, StatusFailed)
	}
	if res.Provider != nil {
		t.Errorf("Provider = %v, want nil", res.Provider)
	}
	if res.Attempts[0].Outcome != OutcomeNotFound || res.Attempts[1].Outcome != OutcomeNotFound {
		t.Errorf("outcomes = %v, want not_found for a and b", res.Attempts)
	}
	if res.Attempts[2].Outcome != OutcomeError {
		t.Errorf("panicking provider outcome = %s, want %s", res.Attempts[2].Outcome, OutcomeError)
	}
}

func TestResolveSkipsUnavailable(t *testing.T) {
	a := &fakeProvider{name: "a", available: false, answer: "never"}
	b := &fakeProvider{name: "b", priority: 1, available: true, answer: "ok"}

	res := New().Resolve(context.Background(), intent.FactLookup, "q", clients(a, b))

	if a.calls != 0 {
		t.Errorf("unavailable provider called %d times", a.calls)
	}
	if res.Attempts[0].Outcome != OutcomeSkipped {
		t.Errorf("Attempts[0].Outcome = %s, want %s", res.Attempts[0].Outcome, OutcomeSkipped)
	}
	if res.Status != StatusSuccess {
		t.Errorf("Status = %s, want %s", res.Status, StatusSuccess)
	}
}

func TestResolveOrdersByPriority(t *testing.T) {
	var order []string
	mk := func(name string, prio int) provider.Client {
		return provider.Wrap(provider.Descriptor{Name: name, Priority: prio},
			provider.FetchFunc(func(ctx context.Context, q string) (string, error) {
				order = append(order, name)
				return "", nil
			}))
	}

	New().Resolve(context.Background(), intent.FactLookup, "q", []provider.Client{mk("late", 2), mk("early", 0), mk("middle", 1)})

	want := []string{"early", "middle", "late"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("call order = %v, want %v", order, want)
	}
}

func TestResolveEmptyChain(t *testing.T) {
	res := New().Resolve(context.Background(), intent.FactLookup, "q", nil)
	if res.Status != StatusFailed || res.Text != NothingFound {
		t.Errorf("got %+v, want failed nothing-found", res)
	}
}
