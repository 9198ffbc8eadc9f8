package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type captureSender struct {
	msgs chan *EmailMessage
}

func (c *captureSender) Send(_ context.Context, msg *EmailMessage) error {
	c.msgs <- msg
	return nil
}

func TestRenderRejectedIncludesRefundSummary(t *testing.T) {
	s := NewServiceWithSender(&captureSender{msgs: make(chan *EmailMessage, 1)})
	defer s.Close()

	html, err := s.Render("transaction_rejected", TransactionDetails{
		CustomerName:   "Dana",
		EventName:      "Jazz Night",
		TransactionID:  "tx-1",
		SeatsReleased:  2,
		PointsRefunded: 500,
		CouponRestored: true,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{"Jazz Night", "Seats released:</strong> 2", "Points refunded:</strong> 500", "coupon can be used again"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected rendered email to contain %q", want)
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	s := NewServiceWithSender(&captureSender{msgs: make(chan *EmailMessage, 1)})
	defer s.Close()

	if _, err := s.Render("nope", nil); err != ErrTemplateNotFound {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestQueuedAcceptedEmailIsSent(t *testing.T) {
	sender := &captureSender{msgs: make(chan *EmailMessage, 1)}
	s := NewServiceWithSender(sender)
	defer s.Close()

	s.SendTransactionAccepted("dana@example.com", TransactionDetails{CustomerName: "Dana", EventName: "Jazz Night", Quantity: 2})

	select {
	case msg := <-sender.msgs:
		if msg.To != "dana@example.com" {
			t.Errorf("unexpected recipient %q", msg.To)
		}
		if !strings.Contains(msg.Subject, "Jazz Night") {
			t.Errorf("unexpected subject %q", msg.Subject)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("email was not sent")
	}
}

func TestSendGridClientSend(t *testing.T) {
	var got sendGridRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewSendGridClient(SendGridConfig{APIKey: "key", FromEmail: "noreply@eventify.test", Endpoint: srv.URL})
	err := c.Send(context.Background(), &EmailMessage{To: "a@b.c", Subject: "Hi", HTMLContent: "<p>x</p>", TextContent: "x"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if auth != "Bearer key" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if len(got.Content) != 2 || got.Content[0].Type != "text/plain" {
		t.Errorf("unexpected content %+v", got.Content)
	}
}

func TestSendGridClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewSendGridClient(SendGridConfig{APIKey: "bad", Endpoint: srv.URL})
	if err := c.Send(context.Background(), &EmailMessage{To: "a@b.c"}); err == nil {
		t.Fatal("expected error for 401")
	}
}
