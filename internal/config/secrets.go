package config

// RedactedConfig returns a copy of cfg with secrets replaced by "***", for
// logging the effective configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.MarketData.APIKey)
	redact(&out.Postgres.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
