package notification

import (
	"context"
	"fmt"

	userRepo "handyhub/database/repository/user"
	"handyhub/utils"

	"firebase.google.com/go/v4/messaging"
)

// Pusher delivers a push notification to one user's registered device.
// Callers treat delivery as best-effort.
type Pusher interface {
	SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error
}

// FCMService is the production implementation backed by Firebase Cloud
// Messaging.
type FCMService struct {
	Users userRepo.UserRepository
}

func NewFCMService(users userRepo.UserRepository) (*FCMService, error) {
	if users == nil {
		return nil, fmt.Errorf("notification service initialization error: user repository is nil")
	}
	return &FCMService{Users: users}, nil
}

// SendToUser looks up the user's FCM token and sends a push. A nil messaging
// client (push not configured) is a silent no-op.
func (s *FCMService) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	if utils.FCMClient == nil {
		return nil
	}
	u, err := s.Users.GetByID(userID)
	if err != nil {
		return fmt.Errorf("SendToUser: could not find user %s: %w", userID, err)
	}
	if u == nil || u.FCMToken == "" {
		// No push target registered; nothing to deliver.
		return nil
	}

	if data == nil {
		data = map[string]string{}
	}
	if _, ok := data["role"]; !ok {
		data["role"] = u.Role
	}

	msg := &messaging.Message{
		Token: u.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := utils.FCMClient.Send(ctx, msg); err != nil {
		return fmt.Errorf("SendToUser: failed to send FCM message: %w", err)
	}
	return nil
}
