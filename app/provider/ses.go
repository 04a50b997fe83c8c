package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/relayq/relayq/app/entity"
)

type SES struct {
	client *sesv2.Client
	source string
}

// NewSES builds a sender that delivers via AWS SES. The source address is
// used when the email carries no sender of its own.
func NewSES(cfg aws.Config, source string) *SES {
	return &SES{
		client: sesv2.NewFromConfig(cfg),
		source: source,
	}
}

func (p *SES) Name() string { return "ses" }

// SendEmail sends a simple-content email via SES.
func (p *SES) SendEmail(ctx context.Context, email *entity.Email) error {
	if email.RecipientEmail == "" {
		return fmt.Errorf("recipient is required")
	}

	from := email.SenderEmail
	if from == "" {
		from = p.source
	}

	_, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{email.RecipientEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(email.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(email.Body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}

	return nil
}
