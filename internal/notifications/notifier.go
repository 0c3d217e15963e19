package notifications

import "context"

type WelcomeInput struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

type Notifier interface {
	SendWelcome(ctx context.Context, input WelcomeInput) error
}
