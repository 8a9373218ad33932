package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

const topicCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("no pubsub topics configured")
	errClosed            = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection used by the outbox relay. Order and
// payment events go to separate topics so subscribers can scale apart.
type Client struct {
	client  *pubsub.Client
	project string
	topics  []string
}

// NewClient dials Pub/Sub and fails fast when a configured topic is missing.
// Topics are provisioned by infrastructure, never by the service.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topics := topicNames(cfg)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	raw, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, project: project, topics: topics}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", topics), "pubsub.ready")
	}
	return c, nil
}

// clientOptions prefers inline credentials over a key file. With neither
// set the library falls back to ambient credentials or the emulator.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

func topicNames(cfg config.PubSubConfig) []string {
	seen := map[string]bool{}
	var names []string
	for _, name := range []string{cfg.OrdersTopic, cfg.PaymentsTopic} {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Ping checks every configured topic and reports all missing ones at once.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClosed
	}
	ctx, cancel := context.WithTimeout(ctx, topicCheckTimeout)
	defer cancel()

	var errs error
	for _, name := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.resource(name)})
		switch {
		case err == nil:
		case status.Code(err) == codes.NotFound:
			errs = multierr.Append(errs, fmt.Errorf("topic %q does not exist", name))
		default:
			errs = multierr.Append(errs, fmt.Errorf("checking topic %q: %w", name, err))
		}
	}
	return errs
}

// Publisher returns a handle for topic, given as an ID or full resource name.
// Callers own the handle and must Stop it.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := c.resource(topic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) resource(topic string) string {
	if c == nil {
		return ""
	}
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic
	case c.project == "":
		return ""
	default:
		return "projects/" + c.project + "/topics/" + topic
	}
}
