package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/khatabook-backend/pkg/config"
)

func TestTopicNamesTrimAndDedupe(t *testing.T) {
	assert.Equal(t, []string{"kb-orders"}, topicNames(config.PubSubConfig{OrdersTopic: " kb-orders ", PaymentsTopic: "kb-orders"}))
	assert.Equal(t, []string{"kb-orders", "kb-payments"}, topicNames(config.PubSubConfig{OrdersTopic: "kb-orders", PaymentsTopic: "kb-payments"}))
	assert.Empty(t, topicNames(config.PubSubConfig{}))
}

func TestResourceName(t *testing.T) {
	c := &Client{project: "khatabook-dev"}
	assert.Equal(t, "projects/khatabook-dev/topics/kb-orders", c.resource("kb-orders"))
	assert.Equal(t, "projects/shared/topics/kb-payments", c.resource("projects/shared/topics/kb-payments"))
	assert.Empty(t, c.resource("  "))
	assert.Empty(t, (&Client{}).resource("kb-orders"))

	var nilClient *Client
	assert.Empty(t, nilClient.resource("kb-orders"))
}

func TestClientOptionsPrecedence(t *testing.T) {
	assert.Nil(t, clientOptions(config.GCPConfig{}))
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/etc/key.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/etc/key.json"}), 1)
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "kb-orders"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errNoTopics)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("kb-orders"))
	assert.ErrorIs(t, c.Ping(context.Background()), errClosed)
	assert.NoError(t, c.Close())
}
