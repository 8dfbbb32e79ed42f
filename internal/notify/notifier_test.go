// internal/notify/notifier_test.go
package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-portal/internal/common/logger"
	"loan-portal/internal/models"
)

type mockSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (m *mockSES) SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{}, nil
}

type mockSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (m *mockSNS) Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{}, nil
}

func submittedApplication() *models.LoanApplication {
	return &models.LoanApplication{
		ID:                "app-1",
		ApplicationNumber: "HBF-2026-074-52245",
		FirstName:         "Maria",
		LastName:          "Santos",
		BusinessName:      "Santos Bakery LLC",
		LoanType:          models.LoanTypeRefinance,
		AmountRequested:   1_500_000,
		Status:            models.StatusUnderReview,
	}
}

func allChannelsOptions() Options {
	return Options{
		EmailEnabled: true,
		FromEmail:    "no-reply@example.com",
		OpsEmail:     "loans@example.com",
		SMSEnabled:   true,
		OpsPhone:     "+15555550100",
	}
}

func TestApplicationSubmitted_BothChannels(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewWithClients(sesMock, snsMock, allChannelsOptions(), logger.NewTestLogger(t))

	err := n.ApplicationSubmitted(context.Background(), submittedApplication())

	require.NoError(t, err)
	require.Len(t, sesMock.inputs, 1)
	require.Len(t, snsMock.inputs, 1)

	email := sesMock.inputs[0]
	assert.Equal(t, "no-reply@example.com", *email.Source)
	assert.Equal(t, []string{"loans@example.com"}, email.Destination.ToAddresses)
	assert.Contains(t, *email.Message.Subject.Data, "HBF-2026-074-52245")
	assert.Contains(t, *email.Message.Body.Text.Data, "$1,500,000")

	sms := snsMock.inputs[0]
	assert.Equal(t, "+15555550100", *sms.PhoneNumber)
	assert.Contains(t, *sms.Message, "HBF-2026-074-52245")
}

func TestApplicationSubmitted_EmailFailureStillSendsSMS(t *testing.T) {
	sesMock := &mockSES{err: errors.New("ses throttled")}
	snsMock := &mockSNS{}
	n := NewWithClients(sesMock, snsMock, allChannelsOptions(), logger.NewTestLogger(t))

	err := n.ApplicationSubmitted(context.Background(), submittedApplication())

	assert.Error(t, err)
	assert.Len(t, snsMock.inputs, 1)
}

func TestApplicationSubmitted_DisabledChannelsSkipped(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	opts := allChannelsOptions()
	opts.EmailEnabled = false
	opts.SMSEnabled = false
	n := NewWithClients(sesMock, snsMock, opts, logger.NewTestLogger(t))

	err := n.ApplicationSubmitted(context.Background(), submittedApplication())

	assert.NoError(t, err)
	assert.Empty(t, sesMock.inputs)
	assert.Empty(t, snsMock.inputs)
}
