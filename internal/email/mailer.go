package email

import (
	"fmt"
	"log"

	"github.com/resend/resend-go/v2"
)

// Mailer sends transactional email through Resend. With no API key
// configured it logs the links instead, so local development works
// without an account.
type Mailer struct {
	apiKey    string
	fromEmail string
}

func NewMailer(apiKey, fromEmail string) *Mailer {
	return &Mailer{
		apiKey:    apiKey,
		fromEmail: fromEmail,
	}
}

// SendLoginLink emails a campaign owner their single-use login link.
func (m *Mailer) SendLoginLink(to, link string) error {
	if m.apiKey == "" {
		log.Println("⚠️  RESEND_API_KEY not set, skipping email send")
		log.Printf("📧 [Dev Mode] Login link for %s: %s", to, link)
		return nil
	}

	html := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
			<h2 style="color: #333;">Sign in to Reviews Plethora</h2>
			<p>Click the button below to log in to your dashboard:</p>
			<a href="%s" style="display: inline-block; background: #6366f1; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600;">
				Sign In
			</a>
			<p style="color: #888; font-size: 14px; margin-top: 16px;">
				This link expires in 15 minutes and can only be used once.
			</p>
			<p style="color: #aaa; font-size: 12px;">
				If you didn't request this, you can safely ignore this email.
			</p>
		</div>
	`, link)

	return m.send(to, "Your Reviews Plethora Login Link", html)
}

// SendMagicLink emails a review invitation to a customer. Delivery is
// optional — owners can also copy the URL or export a CSV of links.
func (m *Mailer) SendMagicLink(to, customerName, campaignName, link string) error {
	if m.apiKey == "" {
		log.Println("⚠️  RESEND_API_KEY not set, skipping email send")
		log.Printf("📧 [Dev Mode] Magic link for %s: %s", to, link)
		return nil
	}

	html := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
			<h2 style="color: #333;">Hi %s,</h2>
			<p>We'd love to hear what you think about %s. Leave a review here:</p>
			<a href="%s" style="display: inline-block; background: #6366f1; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600;">
				Leave a Review
			</a>
			<p style="color: #888; font-size: 14px; margin-top: 16px;">
				This link is personal to you and can only be used once.
			</p>
		</div>
	`, customerName, campaignName, link)

	return m.send(to, fmt.Sprintf("Share your experience with %s", campaignName), html)
}

func (m *Mailer) send(to, subject, html string) error {
	client := resend.NewClient(m.apiKey)

	params := &resend.SendEmailRequest{
		From:    m.fromEmail,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	sent, err := client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	log.Printf("📧 Email sent successfully (ID: %s)", sent.Id)
	return nil
}
