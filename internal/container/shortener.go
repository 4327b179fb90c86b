package container

import (
	"context"

	"github.com/samber/do"
	"github.com/serroba/url-shortener/internal/journal"
	"github.com/serroba/url-shortener/internal/messaging"
	"github.com/serroba/url-shortener/internal/shortener"
	"go.uber.org/zap"
)

// GeneratorPackage provides the code generator for Options.Strategy.
func GeneratorPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (shortener.Generator, error) {
		opts := do.MustInvoke[*Options](i)

		var seq shortener.Sequence
		if shortener.Strategy(opts.Strategy) == shortener.StrategyCounter {
			seq = do.MustInvoke[shortener.Sequence](i)
		}

		return shortener.NewGenerator(shortener.Strategy(opts.Strategy), opts.CodeLength, seq)
	})
}

// RegistryPackage provides the registry. Every created mapping is published
// to the journal topic; publish failures are logged and never fail the
// request.
func RegistryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*shortener.Registry, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		repo := do.MustInvoke[shortener.Repository](i)
		gen := do.MustInvoke[shortener.Generator](i)
		publish := do.MustInvoke[messaging.Publish[journal.Record]](i)

		hook := func(ctx context.Context, shortURL *shortener.ShortURL) {
			if err := publish(ctx, journal.FromShortURL(shortURL)); err != nil {
				logger.Error("failed to publish journal record",
					zap.String("code", string(shortURL.Code)),
					zap.Error(err),
				)
			}
		}

		return shortener.NewRegistry(repo, gen, logger,
			shortener.WithMaxAttempts(opts.MaxAttempts),
			shortener.WithCreateHook(hook),
		), nil
	})
}
