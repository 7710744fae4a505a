package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/rbroggi/parcelhub/internal/config"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}

var (
	topology   = flag.String("topology", "", "TOPIC:SUB1:SUB2;TOPIC2:SUB3 (defaults to the parcel-event topic and subscription from config)")
	configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "optional YAML config file")
)

// parseTopology parses "TOPIC:SUB1:SUB2;TOPIC2:SUB3" into topic -> subscriptions.
func parseTopology(s string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		topic := strings.TrimSpace(parts[0])
		if topic == "" {
			return nil, fmt.Errorf("empty topic in %q", item)
		}
		for _, sub := range parts[1:] {
			if sub = strings.TrimSpace(sub); sub != "" {
				out[topic] = append(out[topic], sub)
			}
		}
		if _, ok := out[topic]; !ok {
			out[topic] = nil
		}
	}
	return out, nil
}

// ensureTopology creates the missing topics and subscriptions. Existing ones are left untouched.
func ensureTopology(ctx context.Context, client *pubsub.Client, topics map[string][]string) error {
	for topicID, subs := range topics {
		topic, err := client.CreateTopic(ctx, topicID)
		if status.Code(err) == codes.AlreadyExists {
			topic = client.Topic(topicID)
		} else if err != nil {
			return fmt.Errorf("error creating topic %s: %w", topicID, err)
		}
		for _, subID := range subs {
			_, err := client.CreateSubscription(ctx, subID, pubsub.SubscriptionConfig{Topic: topic})
			if err != nil && status.Code(err) != codes.AlreadyExists {
				return fmt.Errorf("error creating subscription %s on topic %s: %w", subID, topicID, err)
			}
			log.WithField("topic", topicID).WithField("subscription", subID).Info("subscription ensured")
		}
	}
	return nil
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	layout := *topology
	if layout == "" {
		layout = cfg.PubSub.ParcelEventTopic + ":" + cfg.PubSub.ParcelEventSub
	}
	topics, err := parseTopology(layout)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("unable to create client to project %q: %w", cfg.PubSub.ProjectID, err)
	}
	defer client.Close()
	return ensureTopology(ctx, client, topics)
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.WithError(err).Fatal("pubsub setup failed")
	}
}
