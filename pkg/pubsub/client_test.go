package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/dropship-backend/pkg/config"
)

func TestTopicNamesDeduplicates(t *testing.T) {
	names := TopicNames(config.PubSubConfig{
		OrdersTopic:      "orders",
		FulfillmentTopic: " orders ",
		LedgerTopic:      "ledger",
	})
	if len(names) != 2 || names[0] != "orders" || names[1] != "ledger" {
		t.Fatalf("unexpected topics %v", names)
	}
}

func TestTopicResourceName(t *testing.T) {
	cases := map[string]string{
		"orders":                        "projects/p1/topics/orders",
		"projects/other/topics/ledger":  "projects/other/topics/ledger",
		"  ":                            "",
	}
	for in, want := range cases {
		if got := topicResourceName("p1", in); got != want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := topicResourceName("", "orders"); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.Publisher("orders") != nil {
		t.Fatalf("expected nil publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestEnsureTopicsRequiresOne(t *testing.T) {
	c := &Client{projectID: "p1", cfg: config.PubSubConfig{OrdersTopic: " "}}
	if err := c.ensureTopicsConfigured(context.Background()); err != errNoTopics {
		t.Fatalf("expected no topics error, got %v", err)
	}
}
