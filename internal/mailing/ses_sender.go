package mailing

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/pkg/logger"
)

// SESSender delivers mail through AWS SES v2 for organizations without
// their own SMTP server.
type SESSender struct {
	client *sesv2.Client
	region string
}

// NewSESSender creates an SES sender. With empty credentials the default
// AWS credential chain is used.
func NewSESSender(accessKey, secretKey, region string) (*SESSender, error) {
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AWS config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(cfg), region: region}, nil
}

// Send delivers a single email through SES. A generated Message-ID header
// is attached so replies can thread against the outgoing log even though
// SES assigns its own provider message id.
func (s *SESSender) Send(ctx context.Context, settings *domain.OrgMailSettings, msg *OutboundEmail) (*SendResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("SES client not initialized")
	}

	messageID := fmt.Sprintf("%s@%s", uuid.New().String(), messageIDDomain(msg.FromEmail))
	input := buildSESInput(msg, messageID)

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return nil, fmt.Errorf("SES send failed: %w", err)
	}

	logger.Info("ses send ok", "recipient", msg.To, "message_id", messageID)
	return &SendResult{Success: true, MessageID: messageID, Provider: "ses", SentAt: time.Now().UTC()}, nil
}

// buildSESInput assembles the SES request. Only the bodies that are
// present go into the Body struct; an empty Html part would be rendered
// as a blank email by HTML-capable clients.
func buildSESInput(msg *OutboundEmail, messageID string) *sesv2.SendEmailInput {
	body := &types.Body{}
	if msg.TextBody != "" {
		body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")}
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")}
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
				Headers: []types.MessageHeader{
					{Name: aws.String("Message-ID"), Value: aws.String("<" + messageID + ">")},
				},
			},
		},
	}
}
