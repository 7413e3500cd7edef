package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailService sends transactional email through Amazon SES
type EmailService struct {
	client     *sesv2.Client
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	debug      bool
}

// NewEmailService creates a new email service. An empty fromEmail yields a
// disabled service that logs and skips every send.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, debug bool) (*EmailService, error) {
	if fromEmail == "" {
		slog.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{debug: debug}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slog.Info("Email service enabled", "from", fromEmail, "region", awsRegion)
	return &EmailService{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
		debug:      debug,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendWelcomeEmail greets a newly synced user
func (s *EmailService) SendWelcomeEmail(ctx context.Context, toEmail, toName string) error {
	if !s.enabled {
		slog.Debug("Skipping email send (service disabled)", "kind", "welcome", "to", toEmail)
		return nil
	}
	if toName == "" {
		toName = "there"
	}

	subject := "Welcome to Rollcall"
	htmlBody, textBody, err := welcomeBodies(toName, s.appBaseURL)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

var welcomeHTML = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1 style="color: #2f855a;">You're on the list</h1>
		<p>Hi {{.Name}},</p>
		<p>Your Rollcall account is ready. Start a group for your weekly game, add the regulars by phone number, and let everyone tap in or out before each session.</p>
		<p><a href="{{.URL}}">Open Rollcall</a></p>
		<p style="font-size: 12px; color: #666;">This is an automated email from Rollcall. Please do not reply.</p>
	</div>
</body>
</html>
`))

// welcomeBodies renders the HTML and plain text bodies; the name is escaped
// in the HTML part
func welcomeBodies(name, baseURL string) (string, string, error) {
	var html bytes.Buffer
	data := struct{ Name, URL string }{Name: name, URL: baseURL}
	if err := welcomeHTML.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("failed to render welcome email: %w", err)
	}

	text := fmt.Sprintf("Hi %s,\n\n"+
		"Your Rollcall account is ready. Start a group for your weekly game, add the regulars by phone number, "+
		"and let everyone tap in or out before each session.\n\n"+
		"Open Rollcall: %s\n\n"+
		"---\nThis is an automated email from Rollcall. Please do not reply.\n", name, baseURL)

	return html.String(), text, nil
}

func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	if s.debug {
		slog.Debug("Calling SES SendEmail", "to", toEmail, "subject", subject, "html_bytes", len(htmlBody))
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	if s.debug && result.MessageId != nil {
		slog.Debug("SES accepted message", "message_id", *result.MessageId)
	}
	slog.Info("Email sent", "to", toEmail, "subject", subject)
	return nil
}
