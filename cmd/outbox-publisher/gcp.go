package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type topicPublisherSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// gcpPublishers adapts the Pub/Sub client to a publisherFactory.
func gcpPublishers(client topicPublisherSource, ordering bool) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = ordering
		return &gcpPublisher{Publisher: p}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpPublishResult{
		res:    p.Publisher.Publish(ctx, msg),
		resume: p.Publisher.ResumePublish,
		key:    msg.OrderingKey,
	}
}

type gcpPublishResult struct {
	res    *gcppubsub.PublishResult
	resume func(key string)
	key    string
}

// Get unpauses the ordering key after a failure; otherwise every later
// event of that aggregate would be rejected until restart.
func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.res.Get(ctx)
	if err != nil && r.key != "" {
		r.resume(r.key)
	}
	return id, err
}
