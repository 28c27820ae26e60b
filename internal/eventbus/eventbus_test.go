package eventbus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
)

func TestBusFansOutToAllHandlersInOrder(t *testing.T) {
	b := New(nil)
	var order []string
	b.Subscribe(EventPlanCreated, func(ctx context.Context, e Event) error {
		order = append(order, "first")
		return nil
	})
	b.Subscribe(EventPlanCreated, func(ctx context.Context, e Event) error {
		order = append(order, "second")
		return nil
	})
	b.Publish(context.Background(), Event{Type: EventPlanCreated, TenantID: "t1"})
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestBusContinuesPastHandlerError(t *testing.T) {
	b := New(nil)
	ran := false
	b.Subscribe(EventRunFailed, func(ctx context.Context, e Event) error {
		return errors.New("boom")
	})
	b.Subscribe(EventRunFailed, func(ctx context.Context, e Event) error {
		ran = true
		return nil
	})
	b.Publish(context.Background(), Event{Type: EventRunFailed, TenantID: "t1"})
	if !ran {
		t.Error("expected second handler to run despite first handler's error")
	}
}

func TestBusRecoversFromHandlerPanic(t *testing.T) {
	b := New(nil)
	ran := false
	b.Subscribe(EventCheckFailed, func(ctx context.Context, e Event) error {
		panic("boom")
	})
	b.Subscribe(EventCheckFailed, func(ctx context.Context, e Event) error {
		ran = true
		return nil
	})
	b.Publish(context.Background(), Event{Type: EventCheckFailed, TenantID: "t1"})
	if !ran {
		t.Error("expected second handler to run despite first handler's panic")
	}
}

func TestBusOnlyDeliversToSubscribedType(t *testing.T) {
	b := New(nil)
	called := false
	b.Subscribe(EventPlanApproved, func(ctx context.Context, e Event) error {
		called = true
		return nil
	})
	b.Publish(context.Background(), Event{Type: EventPlanRejected, TenantID: "t1"})
	if called {
		t.Error("handler for a different event type should not have been invoked")
	}
}

type fakeDoer struct {
	mu        sync.Mutex
	requests  []*http.Request
	responses []int
	callIdx   int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	status := 200
	if f.callIdx < len(f.responses) {
		status = f.responses[f.callIdx]
	}
	f.callIdx++
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil))}, nil
}

func allowAllResolver(host string) ([]net.IP, error) {
	return []net.IP{net.ParseIP("93.184.216.34")}, nil
}

func TestDispatcherSignsAndDeliversMatchingSubscription(t *testing.T) {
	doer := &fakeDoer{}
	d := NewDispatcher(doer, allowAllResolver, nil)
	secret, hash, err := NewSubscriptionSecret()
	if err != nil {
		t.Fatal(err)
	}
	sub := Subscription{ID: "sub-1", TenantID: "t1", URL: "https://example.com/hook", EventTypes: map[EventType]bool{EventPlanCreated: true}, SecretHash: hash}
	if err := d.Subscribe(sub, secret); err != nil {
		t.Fatal(err)
	}

	d.Deliver(context.Background(), Event{Type: EventPlanCreated, TenantID: "t1", Payload: map[string]interface{}{"plan_id": "p1"}})

	if len(doer.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(doer.requests))
	}
	req := doer.requests[0]
	if req.Header.Get("X-Ironlayer-Signature") == "" {
		t.Error("expected a signature header on delivery")
	}
	if req.Header.Get("X-Ironlayer-Event-Type") != string(EventPlanCreated) {
		t.Errorf("event-type header = %q", req.Header.Get("X-Ironlayer-Event-Type"))
	}
	if req.Header.Get("X-Ironlayer-Delivery-Id") == "" {
		t.Error("expected a delivery-id header")
	}
}

func TestDispatcherSkipsSubscriptionForDifferentTenant(t *testing.T) {
	doer := &fakeDoer{}
	d := NewDispatcher(doer, allowAllResolver, nil)
	secret, hash, _ := NewSubscriptionSecret()
	sub := Subscription{ID: "sub-1", TenantID: "t2", URL: "https://example.com/hook", EventTypes: map[EventType]bool{EventPlanCreated: true}, SecretHash: hash}
	_ = d.Subscribe(sub, secret)

	d.Deliver(context.Background(), Event{Type: EventPlanCreated, TenantID: "t1"})
	if len(doer.requests) != 0 {
		t.Errorf("requests = %d, want 0 for a non-matching tenant", len(doer.requests))
	}
}

func TestDispatcherRejectsNonHTTPSSubscriptionURL(t *testing.T) {
	d := NewDispatcher(&fakeDoer{}, allowAllResolver, nil)
	secret, hash, _ := NewSubscriptionSecret()
	sub := Subscription{ID: "sub-1", TenantID: "t1", URL: "http://example.com/hook", EventTypes: map[EventType]bool{EventPlanCreated: true}, SecretHash: hash}
	if err := d.Subscribe(sub, secret); err == nil {
		t.Error("expected non-loopback http subscription url to be rejected")
	}
}

func TestDispatcherRetriesOn5xxThenGivesUp(t *testing.T) {
	doer := &fakeDoer{responses: []int{500, 500, 500, 500}}
	d := NewDispatcher(doer, allowAllResolver, nil)
	d.retry.InitialInterval = 1
	d.retry.MaxInterval = 1
	secret, hash, _ := NewSubscriptionSecret()
	sub := Subscription{ID: "sub-1", TenantID: "t1", URL: "https://example.com/hook", EventTypes: map[EventType]bool{EventPlanCreated: true}, SecretHash: hash}
	_ = d.Subscribe(sub, secret)

	d.Deliver(context.Background(), Event{Type: EventPlanCreated, TenantID: "t1"})
	if len(doer.requests) != 4 {
		t.Errorf("requests = %d, want 4 (initial + 3 retries) on repeated 5xx", len(doer.requests))
	}
}
