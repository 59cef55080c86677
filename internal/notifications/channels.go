package notifications

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Channel delivers a rendered message and returns the provider message id.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) (string, error)
}

// SESAPI is the subset of the SES v2 client used for email.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SNSAPI is the subset of the SNS client used for topic fan-out.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// EmailChannel sends plain text email through SES to msg.Address.
type EmailChannel struct {
	client SESAPI
	from   string
}

func NewEmailChannel(client SESAPI, from string) *EmailChannel {
	return &EmailChannel{client: client, from: from}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, msg Message) (string, error) {
	if msg.Address == "" {
		return "", fmt.Errorf("email address is required")
	}

	out, err := c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.Address},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// snsSubjectLimit is the maximum SNS subject length.
const snsSubjectLimit = 100

// TopicChannel publishes to an SNS topic. msg.Address overrides the default topic.
type TopicChannel struct {
	client   SNSAPI
	topicARN string
}

func NewTopicChannel(client SNSAPI, topicARN string) *TopicChannel {
	return &TopicChannel{client: client, topicARN: topicARN}
}

func (c *TopicChannel) Name() string { return ChannelTopic }

func (c *TopicChannel) Send(ctx context.Context, msg Message) (string, error) {
	topic := c.topicARN
	if msg.Address != "" {
		topic = msg.Address
	}
	if topic == "" {
		return "", fmt.Errorf("topic arn is required")
	}

	subject := msg.Subject
	if len(subject) > snsSubjectLimit {
		subject = subject[:snsSubjectLimit]
	}

	out, err := c.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topic),
		Subject:  aws.String(subject),
		Message:  aws.String(msg.Body),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"recipient_role": {DataType: aws.String("String"), StringValue: aws.String(msg.RecipientRole)},
			"template_key":   {DataType: aws.String("String"), StringValue: aws.String(msg.TemplateKey)},
			"document_id":    {DataType: aws.String("String"), StringValue: aws.String(msg.DocumentID.String())},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish notification: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
