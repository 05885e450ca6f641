package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/mesour/brick-offers-sub004/internal/config"
	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// SESMailer sends via AWS SES using the SDK v2.
type SESMailer struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
	configSet   string
	log         *logger.Logger
}

// NewSESMailer builds the SES client from static credentials. Returns an
// error when the provider is enabled but credentials are missing, so a
// misconfigured worker fails at startup rather than at first send.
func NewSESMailer(cfg config.SESConfig) (*SESMailer, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("ses mailer: access key and secret key are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ses mailer: load aws config: %w", err)
	}
	return &SESMailer{
		client:      sesv2.NewFromConfig(awsCfg),
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		configSet:   cfg.ConfigSet,
		log:         logger.With("mailer"),
	}, nil
}

func (m *SESMailer) Send(ctx context.Context, msg *Message) (*Result, error) {
	from := m.fromAddress
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.fromAddress)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.PlainTextBody != "" {
		input.Content.Simple.Body.Text = &types.Content{
			Data: aws.String(msg.PlainTextBody), Charset: aws.String("UTF-8"),
		}
	}
	if m.configSet != "" {
		input.ConfigurationSetName = aws.String(m.configSet)
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		m.log.Warn("ses send failed", "recipient", msg.To, "error", err.Error())
		return nil, domain.Wrap(domain.KindUpstreamUnavailable, "ses send", err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	m.log.Info("ses sent", "recipient", msg.To, "message_id", messageID)

	return &Result{MessageID: messageID, SentAt: time.Now()}, nil
}
