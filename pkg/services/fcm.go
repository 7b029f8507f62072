package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

var fcmClient *messaging.Client

// InitFCM initializes Firebase Cloud Messaging
func InitFCM() error {
	ctx := context.Background()

	// Initialize Firebase app
	opt := option.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return fmt.Errorf("failed to initialize Firebase app: %v", err)
	}

	// Initialize FCM client
	client, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize FCM client: %v", err)
	}

	fcmClient = client
	return nil
}

// FCMEnabled reports whether InitFCM succeeded.
func FCMEnabled() bool {
	return fcmClient != nil
}

// OutletTopic is the FCM topic POS terminals of an outlet subscribe to.
func OutletTopic(outletID int) string {
	return fmt.Sprintf("outlet-%d", outletID)
}

// FCMPublisher publishes settlement events as FCM data messages on the outlet topic.
type FCMPublisher struct{}

func (FCMPublisher) Publish(ctx context.Context, topic string, payload EventPayload) error {
	if fcmClient == nil {
		return fmt.Errorf("FCM client not initialized")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %v", err)
	}

	message := &messaging.Message{
		Topic: OutletTopic(payload.OutletID),
		Data: map[string]string{
			"event":   topic,
			"orderId": fmt.Sprintf("%d", payload.OrderID),
			"payload": string(body),
		},
	}

	if _, err := fcmClient.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to publish %s: %v", topic, err)
	}
	return nil
}

// SendBulkPushNotifications sends notifications to multiple devices
func SendBulkPushNotifications(ctx context.Context, deviceTokens []string, title, body string, data map[string]string) ([]string, error) {
	if fcmClient == nil {
		return nil, fmt.Errorf("FCM client not initialized")
	}

	message := &messaging.MulticastMessage{
		Tokens: deviceTokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	response, err := fcmClient.SendMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to send bulk notifications: %v", err)
	}

	// Return tokens that accepted the message
	results := []string{}
	for i, resp := range response.Responses {
		if resp.Success {
			results = append(results, deviceTokens[i])
		}
	}

	return results, nil
}

// GetServiceStatus returns FCM service connection status
func GetServiceStatus() map[string]interface{} {
	status := map[string]interface{}{
		"initialized": fcmClient != nil,
		"service":     "Firebase Cloud Messaging",
	}

	if fcmClient != nil {
		status["status"] = "connected"
	} else {
		status["status"] = "not initialized"
	}

	return status
}
