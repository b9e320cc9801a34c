package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Auth.APIKey)
	redact(&out.Auth.Secret)
	redact(&out.Terminal.BridgeToken)
	redact(&out.Redis.Password)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Server.CORSOrigins = cloneStrings(cfg.Server.CORSOrigins)
	out.Notify.Events = cloneStrings(cfg.Notify.Events)
	out.Resolver.Aliases = cloneStrings(cfg.Resolver.Aliases)
	out.Resolver.Keywords = cloneStrings(cfg.Resolver.Keywords)
	out.Resolver.CommodityTokens = cloneStrings(cfg.Resolver.CommodityTokens)
	if cfg.Terminal.Paper.Symbols != nil {
		out.Terminal.Paper.Symbols = make([]PaperSymbol, len(cfg.Terminal.Paper.Symbols))
		copy(out.Terminal.Paper.Symbols, cfg.Terminal.Paper.Symbols)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
