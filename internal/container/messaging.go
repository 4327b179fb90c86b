package container

import (
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/samber/do"
	"github.com/serroba/url-shortener/internal/journal"
	"github.com/serroba/url-shortener/internal/messaging"
	"go.uber.org/zap"
)

// PublisherGroupPackage provides the journal publish function. With events
// disabled it drops every record and never touches Redis.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		rdb := do.MustInvoke[*Redis](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     rdb.Client,
			Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
		}, messaging.NewZapLoggerAdapter(logger))
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(i, func(i *do.Injector) (messaging.Publish[journal.Record], error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.Events {
			return messaging.NoopPublish[journal.Record](), nil
		}

		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return messaging.NewPublishFunc[journal.Record](group.Publisher(), journal.Topic), nil
	})
}

// ConsumerGroupPackage provides the journal writer and the consumer group
// that feeds it from the Redis stream.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*journal.Writer, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return journal.OpenWriter(opts.JournalPath, logger)
	})

	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		rdb := do.MustInvoke[*Redis](i)
		logger := do.MustInvoke[*zap.Logger](i)
		writer := do.MustInvoke[*journal.Writer](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        rdb.Client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: JournalConsumerGroup,
		}, messaging.NewZapLoggerAdapter(logger))
		if err != nil {
			return nil, err
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(messaging.NewConsumer[journal.Record](subscriber, journal.Topic, writer.Append, logger))

		return group, nil
	})
}
