// Package notify tells an uploader their results are ready.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Notification is addressed to a single device push token.
type Notification struct {
	Token string
	Title string
	Body  string
	Link  string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// FCMNotifier sends web-push notifications through Firebase Cloud Messaging.
type FCMNotifier struct {
	Service   *fcm.Service
	ProjectID string
	Icon      string
	Badge     string
	Tag       string
}

func NewFCMNotifier(ctx context.Context, projectID string, opts ...option.ClientOption) (*FCMNotifier, error) {
	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("fcm client: %w", err)
	}
	return &FCMNotifier{Service: svc, ProjectID: projectID, Tag: "lead-upload"}, nil
}

type webNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

func (n *FCMNotifier) Notify(ctx context.Context, msg Notification) error {
	web, err := json.Marshal(webNotification{
		Title: msg.Title,
		Body:  msg.Body,
		Icon:  n.Icon,
		Badge: n.Badge,
		Tag:   n.Tag,
	})
	if err != nil {
		return err
	}

	req := &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Token:        msg.Token,
			Notification: &fcm.Notification{Title: msg.Title, Body: msg.Body},
			Webpush: &fcm.WebpushConfig{
				Notification: googleapi.RawMessage(web),
			},
		},
	}
	if msg.Link != "" {
		req.Message.Webpush.FcmOptions = &fcm.WebpushFcmOptions{Link: msg.Link}
	}

	_, err = n.Service.Projects.Messages.Send("projects/"+n.ProjectID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

// LogNotifier only logs; used when FCM is not configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, msg Notification) error {
	n.Logger.Info("push notification",
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.String("link", msg.Link))
	return nil
}
