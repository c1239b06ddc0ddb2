package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
)

// PushSender is satisfied by *messaging.Client.
type PushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushChannel sends FCM messages to the device token registered under user:<id>:fcm.
type PushChannel struct {
	client PushSender
	tokens redis.Cmdable
}

// NewFirebaseMessaging builds an FCM client from a service account file.
func NewFirebaseMessaging(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing FCM: %w", err)
	}
	return client, nil
}

func NewPushChannel(client PushSender, tokens redis.Cmdable) *PushChannel {
	return &PushChannel{client: client, tokens: tokens}
}

func TokenKey(userID int32) string {
	return fmt.Sprintf("user:%d:fcm", userID)
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Deliver(ctx context.Context, user *domain.User, n *domain.Notification) error {
	token, err := c.tokens.Get(ctx, TokenKey(user.ID)).Result()
	if errors.Is(err, redis.Nil) || token == "" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up device token: %w", err)
	}

	data := map[string]string{"category": string(n.Category)}
	if n.BookingID != nil {
		data["booking_id"] = strconv.Itoa(int(*n.BookingID))
	}
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: subject(n.Category),
			Body:  n.Message,
		},
		Data: data,
	}

	logger.ExternalServiceCall("fcm", "Send", "userID", user.ID)
	id, err := c.client.Send(ctx, msg)
	logger.ExternalServiceResult("fcm", "Send", err, "userID", user.ID, "messageID", id)
	return err
}
