// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"loan-portal/internal/common/logger"
	"loan-portal/internal/models"
)

// SESAPI is the slice of the SES client the notifier uses.
type SESAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSAPI is the slice of the SNS client the notifier uses.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Options configures channels and addressing for the notifier.
type Options struct {
	EmailEnabled bool
	FromEmail    string
	OpsEmail     string
	SMSEnabled   bool
	OpsPhone     string
}

// Notifier sends best-effort submission notifications over SES email and SNS
// SMS. A failed channel never affects the other, and the first error is
// returned only so the caller can log it.
type Notifier struct {
	sesClient SESAPI
	snsClient SNSAPI
	opts      Options
	logger    logger.Logger
}

var amountPrinter = message.NewPrinter(language.AmericanEnglish)

// New builds a notifier from fresh AWS clients for the given region.
func New(ctx context.Context, region string, opts Options, log logger.Logger) (*Notifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClients(ses.NewFromConfig(cfg), sns.NewFromConfig(cfg), opts, log), nil
}

// NewWithClients builds a notifier around existing clients, used in tests.
func NewWithClients(sesClient SESAPI, snsClient SNSAPI, opts Options, log logger.Logger) *Notifier {
	return &Notifier{
		sesClient: sesClient,
		snsClient: snsClient,
		opts:      opts,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// ApplicationSubmitted notifies the ops team about a new submission.
func (n *Notifier) ApplicationSubmitted(ctx context.Context, app *models.LoanApplication) error {
	var firstErr error

	if n.opts.EmailEnabled && n.sesClient != nil {
		if err := n.sendEmail(ctx, app); err != nil {
			n.logger.WithError(err).Warn("submission email failed", map[string]interface{}{
				"applicationId": app.ID,
			})
			firstErr = err
		}
	}

	if n.opts.SMSEnabled && n.snsClient != nil {
		if err := n.sendSMS(ctx, app); err != nil {
			n.logger.WithError(err).Warn("submission sms failed", map[string]interface{}{
				"applicationId": app.ID,
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (n *Notifier) sendEmail(ctx context.Context, app *models.LoanApplication) error {
	subject := fmt.Sprintf("New loan application %s", app.ApplicationNumber)
	body := amountPrinter.Sprintf(
		"Application %s from %s %s (%s) requests $%d as %s. Initial status: %s.",
		app.ApplicationNumber, app.FirstName, app.LastName, app.BusinessName,
		int64(app.AmountRequested), string(app.LoanType), string(app.Status),
	)

	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.opts.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.opts.OpsEmail},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, app *models.LoanApplication) error {
	text := amountPrinter.Sprintf("New loan application %s: $%d (%s)",
		app.ApplicationNumber, int64(app.AmountRequested), string(app.LoanType))

	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(n.opts.OpsPhone),
		Message:     aws.String(text),
	})
	return err
}
