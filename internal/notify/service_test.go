package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSMS struct {
	sent []string
	to   []string
	err  error
}

func (f *fakeSMS) Send(_ context.Context, to, body string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.sent = append(f.sent, body)
	return nil
}

type fakeEmail struct {
	msgs []EmailMessage
	err  error
}

func (f *fakeEmail) Send(_ context.Context, msg EmailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeCounter struct {
	sent int
}

func (f *fakeCounter) IncrSMSSent(context.Context) error {
	f.sent++
	return nil
}

func TestNotifyOwnerSendsSMSAndEmail(t *testing.T) {
	sms := &fakeSMS{}
	email := &fakeEmail{}
	counter := &fakeCounter{}
	svc := NewService(sms, email, "+15550002222", "owner@example.com", "Glow Studio", counter, nil)

	svc.NotifyOwner(context.Background(), "New booking: Alice for 2025-06-16 14:00 at +15551234567", "+15551234567")

	assert.Equal(t, []string{"+15550002222"}, sms.to)
	assert.Equal(t, 1, counter.sent)

	assert.Len(t, email.msgs, 1)
	assert.Equal(t, "owner@example.com", email.msgs[0].To)
	assert.Equal(t, "Glow Studio booking update", email.msgs[0].Subject)
	assert.Contains(t, email.msgs[0].Body, "New booking: Alice")
	assert.Contains(t, email.msgs[0].Body, "+15551234567")
	assert.Contains(t, email.msgs[0].Body, "- Glow Studio")
	assert.NotContains(t, email.msgs[0].Body, "—")
}

func TestNotifyOwnerWithStubEmailSender(t *testing.T) {
	stub := NewStubEmailSender(nil)
	svc := NewService(nil, stub, "", "owner@example.com", "Glow Studio", nil, nil)

	// The stub accepts anything; NotifyOwner must complete without side effects.
	svc.NotifyOwner(context.Background(), "New booking: Alice", "+15551234567")
}

func TestNotifyOwnerSwallowsSMSFailure(t *testing.T) {
	sms := &fakeSMS{err: errors.New("carrier down")}
	counter := &fakeCounter{}
	svc := NewService(sms, nil, "+15550002222", "", "Glow Studio", counter, nil)

	svc.NotifyOwner(context.Background(), "hello", "+15551234567")
	assert.Zero(t, counter.sent)
}

func TestNotifyOwnerSkipsWithoutOwnerPhone(t *testing.T) {
	sms := &fakeSMS{}
	svc := NewService(sms, nil, "", "", "Glow Studio", nil, nil)

	svc.NotifyOwner(context.Background(), "hello", "+15551234567")
	assert.Empty(t, sms.sent)
}

func TestNotifyOwnerIgnoresEmptyMessage(t *testing.T) {
	sms := &fakeSMS{}
	svc := NewService(sms, nil, "+15550002222", "", "Glow Studio", nil, nil)

	svc.NotifyOwner(context.Background(), "   ", "+15551234567")
	assert.Empty(t, sms.sent)
}
