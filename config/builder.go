package config

import (
	"fmt"
	"sort"

	"github.com/mfenwick/stakeout"
	"github.com/mfenwick/stakeout/channel"
)

// BuildQuery converts the parsed query configuration into an SDK Query.
func BuildQuery(cfg *Config) (stakeout.Query, error) {
	var opts []stakeout.QueryOption
	if cfg.Query.Locator != "" {
		opts = append(opts, stakeout.WithLocator(cfg.Query.Locator))
	}
	if cfg.Query.Negative {
		opts = append(opts, stakeout.WithNegative())
	}
	return stakeout.NewQuery(stakeout.Mode(cfg.Query.Mode), cfg.Query.Value, opts...)
}

// BuildSenders converts the channel configurations into SDK senders.
func BuildSenders(cfg *Config) ([]stakeout.Sender, error) {
	var senders []stakeout.Sender

	for i, ch := range cfg.Channels {
		sender, err := buildSender(ch)
		if err != nil {
			return nil, fmt.Errorf("channels[%d]: %w", i, err)
		}
		senders = append(senders, sender)
	}

	return senders, nil
}

// buildSender converts a single ChannelConfig to an SDK sender.
func buildSender(ch ChannelConfig) (stakeout.Sender, error) {
	switch ch.Type {
	case "discord":
		var opts []channel.DiscordOption
		if ch.Title != "" {
			opts = append(opts, channel.WithDiscordTitle(ch.Title))
		}
		if ch.Username != "" {
			opts = append(opts, channel.WithDiscordUsername(ch.Username))
		}
		return channel.NewDiscord(ch.WebhookURL, opts...)

	case "webhook":
		var opts []channel.WebhookOption
		if ch.Name != "" {
			opts = append(opts, channel.WithWebhookName(ch.Name))
		}
		if len(ch.Headers) > 0 {
			opts = append(opts, channel.WithWebhookHeaders(ch.Headers))
		}
		return channel.NewWebhook(ch.URL, opts...)

	case "email":
		var opts []channel.EmailOption
		if ch.Username != "" {
			opts = append(opts, channel.WithEmailAuth(ch.Username, ch.Password))
		}
		if ch.Subject != "" {
			opts = append(opts, channel.WithEmailSubject(ch.Subject))
		}
		return channel.NewEmail(ch.Host, ch.Port, ch.From, ch.To, opts...)

	default:
		// validation catches this before building
		return nil, fmt.Errorf("unknown channel type %q", ch.Type)
	}
}

// BuildOptions converts a parsed configuration into the full SDK option set.
func BuildOptions(cfg *Config) ([]stakeout.Option, error) {
	query, err := BuildQuery(cfg)
	if err != nil {
		return nil, err
	}

	senders, err := BuildSenders(cfg)
	if err != nil {
		return nil, err
	}

	opts := []stakeout.Option{
		stakeout.WithURL(cfg.Target.URL),
		stakeout.WithQuery(query),
		stakeout.WithInterval(cfg.Interval.Duration()),
		stakeout.WithRequestTimeout(cfg.Target.Timeout.Duration()),
		stakeout.WithRequestDelay(cfg.RequestDelay.Duration()),
		stakeout.WithSendTimeout(cfg.SendTimeout.Duration()),
		stakeout.WithRetryPolicy(stakeout.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay.Duration(),
			Multiplier:  cfg.Retry.Multiplier,
			MaxDelay:    cfg.Retry.MaxDelay.Duration(),
			MaxElapsed:  cfg.Retry.MaxElapsed.Duration(),
		}),
	}

	if cfg.Target.Method != "" {
		opts = append(opts, stakeout.WithMethod(cfg.Target.Method))
	}
	if len(cfg.Target.Headers) > 0 {
		opts = append(opts, stakeout.WithHeaders(mapToKeyValuePairs(cfg.Target.Headers)...))
	}
	if len(senders) > 0 {
		opts = append(opts, stakeout.WithSenders(senders...))
	}
	if cfg.StartupNotice {
		opts = append(opts, stakeout.WithStartupNotice())
	}

	return opts, nil
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
