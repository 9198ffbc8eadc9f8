package email

import (
	"bytes"
	"context"
	"html/template"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sender delivers one rendered message
type Sender interface {
	Send(ctx context.Context, msg *EmailMessage) error
}

// Service renders templates and sends them from a background queue
type Service struct {
	sender       Sender
	templates    map[string]*template.Template
	baseTemplate *template.Template
	queue        chan *QueuedEmail
	wg           sync.WaitGroup
	// OnFailure is called for every message the worker fails to send.
	OnFailure func(err error)
}

// QueuedEmail represents an email in the send queue
type QueuedEmail struct {
	To           string
	ToName       string
	Subject      string
	TemplateName string
	Data         interface{}
}

// NewService creates email service backed by SendGrid. Without an API key
// messages are only logged.
func NewService(config SendGridConfig) *Service {
	if config.APIKey == "" {
		return NewServiceWithSender(logSender{})
	}
	return NewServiceWithSender(NewSendGridClient(config))
}

// NewServiceWithSender creates email service with a custom sender
func NewServiceWithSender(sender Sender) *Service {
	s := &Service{
		sender:    sender,
		templates: make(map[string]*template.Template),
		queue:     make(chan *QueuedEmail, 100),
	}

	s.baseTemplate = template.Must(template.New("base").Parse(BaseTemplate))
	s.loadTemplates()

	s.wg.Add(1)
	go s.worker()

	return s
}

func (s *Service) loadTemplates() {
	templates := map[string]string{
		"transaction_accepted": TransactionAcceptedTemplate,
		"transaction_rejected": TransactionRejectedTemplate,
	}

	for name, content := range templates {
		tmpl, err := template.New(name).Parse(content)
		if err != nil {
			log.Error().Err(err).Str("template", name).Msg("Failed to parse email template")
			continue
		}
		s.templates[name] = tmpl
	}
}

func (s *Service) worker() {
	defer s.wg.Done()

	for email := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.send(ctx, email)
		cancel()
		if err != nil {
			log.Error().Err(err).
				Str("to", email.To).
				Str("template", email.TemplateName).
				Msg("Failed to send email")
			if s.OnFailure != nil {
				s.OnFailure(err)
			}
		}
	}
}

// Render produces the full HTML body for a template
func (s *Service) Render(templateName string, data interface{}) (string, error) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return "", ErrTemplateNotFound
	}

	var contentBuf bytes.Buffer
	if err := tmpl.Execute(&contentBuf, data); err != nil {
		return "", err
	}

	var htmlBuf bytes.Buffer
	if err := s.baseTemplate.Execute(&htmlBuf, map[string]interface{}{
		"Content": template.HTML(contentBuf.String()),
	}); err != nil {
		return "", err
	}
	return htmlBuf.String(), nil
}

func (s *Service) send(ctx context.Context, email *QueuedEmail) error {
	html, err := s.Render(email.TemplateName, email.Data)
	if err != nil {
		return err
	}

	return s.sender.Send(ctx, &EmailMessage{
		To:          email.To,
		ToName:      email.ToName,
		Subject:     email.Subject,
		HTMLContent: html,
	})
}

// Queue adds an email to the async send queue
func (s *Service) Queue(to, toName, templateName, subject string, data interface{}) {
	select {
	case s.queue <- &QueuedEmail{
		To:           to,
		ToName:       toName,
		Subject:      subject,
		TemplateName: templateName,
		Data:         data,
	}:
	default:
		log.Warn().Str("to", to).Msg("Email queue full, dropping email")
	}
}

// Close drains the queue and stops the worker
func (s *Service) Close() {
	close(s.queue)
	s.wg.Wait()
}

// TransactionDetails fills the transaction templates
type TransactionDetails struct {
	CustomerName   string
	EventName      string
	TransactionID  string
	Quantity       int
	TotalAmount    int64
	SeatsReleased  int
	PointsRefunded int64
	CouponRestored bool
	TransactionURL string
}

// SendTransactionAccepted queues the confirmation email
func (s *Service) SendTransactionAccepted(to string, d TransactionDetails) {
	s.Queue(to, d.CustomerName, "transaction_accepted", "Your tickets for "+d.EventName+" are confirmed", d)
}

// SendTransactionRejected queues the rejection email with its refund summary
func (s *Service) SendTransactionRejected(to string, d TransactionDetails) {
	s.Queue(to, d.CustomerName, "transaction_rejected", "Your order for "+d.EventName+" was rejected", d)
}

type logSender struct{}

func (logSender) Send(_ context.Context, msg *EmailMessage) error {
	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("Email delivery disabled, message logged")
	return nil
}
