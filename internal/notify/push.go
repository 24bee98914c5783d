package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Push is a mobile push message addressed to one device token.
type Push struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// PushSender delivers a single push message.
type PushSender interface {
	Send(ctx context.Context, msg Push) error
}

// FCMSender sends push messages through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender initializes a Firebase app from a service account file.
func NewFCMSender(ctx context.Context, credentialsFile, projectID string) (*FCMSender, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &FCMSender{client: client}, nil
}

// Send implements PushSender.
func (s *FCMSender) Send(ctx context.Context, msg Push) error {
	message := &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
	if _, err := s.client.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send push message: %w", err)
	}
	return nil
}

// LogPushSender logs messages instead of sending them. It is wired when Firebase is not configured.
type LogPushSender struct {
	logger *zap.Logger
}

// NewLogPushSender creates a new LogPushSender.
func NewLogPushSender(logger *zap.Logger) *LogPushSender {
	return &LogPushSender{logger: logger}
}

// Send implements PushSender.
func (s *LogPushSender) Send(_ context.Context, msg Push) error {
	s.logger.Info("push delivery disabled, message dropped",
		zap.String("title", msg.Title),
		zap.Any("data", msg.Data),
	)
	return nil
}
