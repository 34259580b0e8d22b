package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type SubscriptionNotice struct {
	FullName  string
	Headline  string
	PlanType  string
	Status    string
	EndDate   string
	ExtraLine string
}

type IEmailService interface {
	SendSubscriptionNotice(toEmail string, notice SubscriptionNotice) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
}

func NewEmailService(host string, port int, username, password, senderName string) IEmailService {
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: username,
		senderName:  senderName,
	}
}

// BuildSubscriptionMessage renders the notice without sending it.
func (s *emailService) BuildSubscriptionMessage(toEmail string, n SubscriptionNotice) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", n.Headline)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>%s</h2>
			<p>Hi %s,</p>
			<p>Your <strong>%s</strong> milk subscription is now <strong>%s</strong>.</p>
			<p>Deliveries run until %s.</p>
			<p>%s</p>
		</div>
	`, n.Headline, n.FullName, n.PlanType, n.Status, n.EndDate, n.ExtraLine)

	m.SetBody("text/html", body)
	return m
}

func (s *emailService) SendSubscriptionNotice(toEmail string, n SubscriptionNotice) error {
	if s.dialer.Host == "" {
		return fmt.Errorf("smtp host is not configured")
	}
	if err := s.dialer.DialAndSend(s.BuildSubscriptionMessage(toEmail, n)); err != nil {
		return fmt.Errorf("send subscription notice to %s: %w", toEmail, err)
	}
	return nil
}
