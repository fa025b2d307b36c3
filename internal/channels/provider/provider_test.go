package provider

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	name       string
	configured bool
	err        error
	sent       int
}

func (f *fakeProvider) Name() string       { return f.name }
func (f *fakeProvider) IsConfigured() bool { return f.configured }

func (f *fakeProvider) Send(ctx context.Context, msg *Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent++
	return nil
}

func testMessage() *Message {
	return &Message{From: "alerts@portal.example", To: []string{"a@b.c"}, Subject: "s", Body: "b"}
}

func TestRegistry_SendUsesPrimary(t *testing.T) {
	primary := &fakeProvider{name: "resend", configured: true}
	fallback := &fakeProvider{name: "ses", configured: true}

	r := NewRegistry()
	r.Register(primary)
	r.Register(fallback)
	if err := r.SetPrimary("resend"); err != nil {
		t.Fatalf("SetPrimary() error: %v", err)
	}
	if err := r.SetFallback("ses"); err != nil {
		t.Fatalf("SetFallback() error: %v", err)
	}

	if err := r.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if primary.sent != 1 || fallback.sent != 0 {
		t.Errorf("Send() used primary=%d fallback=%d, want 1 and 0", primary.sent, fallback.sent)
	}
}

func TestRegistry_SendFallsBackOnFailure(t *testing.T) {
	primary := &fakeProvider{name: "resend", configured: true, err: errors.New("rate limited")}
	fallback := &fakeProvider{name: "ses", configured: true}

	r := NewRegistry()
	r.Register(primary)
	r.Register(fallback)
	r.SetPrimary("resend")
	r.SetFallback("ses")

	if err := r.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send() error: %v, want fallback success", err)
	}
	if fallback.sent != 1 {
		t.Errorf("Send() fallback sent = %d, want 1", fallback.sent)
	}
}

func TestRegistry_SendSkipsUnconfiguredPrimary(t *testing.T) {
	primary := &fakeProvider{name: "resend", configured: false}
	fallback := &fakeProvider{name: "ses", configured: true}

	r := NewRegistry()
	r.Register(primary)
	r.Register(fallback)
	r.SetPrimary("resend")
	r.SetFallback("ses")

	if err := r.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if primary.sent != 0 || fallback.sent != 1 {
		t.Errorf("Send() primary=%d fallback=%d, want 0 and 1", primary.sent, fallback.sent)
	}
}

func TestRegistry_SendNoProviders(t *testing.T) {
	r := NewRegistry()
	if err := r.Send(context.Background(), testMessage()); err == nil {
		t.Fatal("Send() with no providers expected error")
	}
}

func TestRegistry_SendReturnsOriginalError(t *testing.T) {
	primaryErr := errors.New("rate limited")
	primary := &fakeProvider{name: "resend", configured: true, err: primaryErr}
	fallback := &fakeProvider{name: "ses", configured: true, err: errors.New("also down")}

	r := NewRegistry()
	r.Register(primary)
	r.Register(fallback)
	r.SetPrimary("resend")
	r.SetFallback("ses")

	if err := r.Send(context.Background(), testMessage()); !errors.Is(err, primaryErr) {
		t.Errorf("Send() error = %v, want the primary's error", err)
	}
}

func TestRegistry_SetPrimaryUnknown(t *testing.T) {
	r := NewRegistry()
	if err := r.SetPrimary("missing"); err == nil {
		t.Fatal("SetPrimary() for unregistered provider expected error")
	}
	if err := r.SetFallback("missing"); err == nil {
		t.Fatal("SetFallback() for unregistered provider expected error")
	}
}
