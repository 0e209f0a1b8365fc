package cmd

import (
	"context"

	"github.com/pithecene-io/zenodo-publisher/assemble"
	"github.com/pithecene-io/zenodo-publisher/cli/config"
	"github.com/pithecene-io/zenodo-publisher/deposit"
	"github.com/pithecene-io/zenodo-publisher/ledger"
	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/notify"
	"github.com/pithecene-io/zenodo-publisher/notify/redis"
	"github.com/pithecene-io/zenodo-publisher/notify/webhook"
	"github.com/pithecene-io/zenodo-publisher/runner"
	"github.com/pithecene-io/zenodo-publisher/sign"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// newNotifier builds the notifier selected by NOTIFY_ADAPTER, or nil.
func newNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	switch cfg.Adapter {
	case "", config.NotifyNone:
		return nil, nil
	case config.NotifyWebhook:
		n, err := webhook.New(webhook.Config{URL: cfg.URL, Retries: cfg.Retries})
		if err != nil {
			return nil, types.NewError(types.ErrConfiguration, "notify", err)
		}
		return n, nil
	case config.NotifyRedis:
		n, err := redis.New(redis.Config{URL: cfg.URL, Channel: cfg.Channel, Retries: cfg.Retries})
		if err != nil {
			return nil, types.NewError(types.ErrConfiguration, "notify", err)
		}
		return n, nil
	default:
		return nil, types.Errorf(types.ErrConfiguration, "notify", "unknown notify adapter %q", cfg.Adapter)
	}
}

// openLedger opens the configured ledger. When required is false an
// unreachable backend is logged and the run continues without a ledger.
func openLedger(ctx context.Context, cfg ledger.Config, required bool, logger *log.Logger, m *metrics.Collector) (*ledger.Ledger, error) {
	l, err := ledger.Open(ctx, cfg, logger, m)
	if err == nil {
		return l, nil
	}
	if required {
		return nil, types.NewError(types.ErrIO, "ledger", err)
	}
	logger.Warn("ledger unavailable; continuing without it", map[string]any{
		"backend": cfg.Backend,
		"error":   err.Error(),
	})
	return nil, nil
}

// newSigner returns the gpg signer, or nil when signing is disabled.
func newSigner(cfg *config.Config, r runner.Runner, logger *log.Logger, m *metrics.Collector) assemble.Signer {
	if !cfg.GPGSign {
		return nil
	}
	return sign.New(r, sign.Options{
		UID:       cfg.GPGUID,
		ExtraArgs: cfg.GPGExtraArgs,
		Overwrite: cfg.GPGOverwrite,
	}, logger, m)
}

// newDeposits returns the deposit manager, or nil without a publisher.
func newDeposits(cfg *config.Config, logger *log.Logger, m *metrics.Collector) (*deposit.Manager, error) {
	if !cfg.HasPublisher() {
		return nil, nil
	}
	if cfg.PublisherType != config.PublisherZenodo {
		return nil, types.Errorf(types.ErrConfiguration, "deposit", "unsupported publisher %q", cfg.PublisherType)
	}
	client, err := deposit.NewClient(deposit.Config{
		BaseURL: cfg.ZenodoAPIURL,
		Token:   cfg.ZenodoToken,
	}, logger, m)
	if err != nil {
		return nil, err
	}
	return deposit.NewManager(client, logger, m), nil
}
