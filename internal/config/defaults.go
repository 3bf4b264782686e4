package config

func Defaults() *Config {
	return &Config{
		Bot: BotConfig{
			Username: "",
			LogLevel: "info",
		},
		Transport: TransportConfig{
			Kind: "socket",
			Socket: SocketConfig{
				Network:            "unix",
				Address:            "/var/run/signald/signald.sock",
				DialTimeoutSeconds: 5,
			},
			WebSocket: WebSocketConfig{
				URL:                "ws://127.0.0.1:8080/v1/bridge",
				DialTimeoutSeconds: 5,
			},
			Redis: RedisConfig{
				URL:     "redis://localhost:6379",
				Channel: "signalbot:outbound",
			},
		},
		Audit: AuditConfig{
			Enabled:       false,
			DBPath:        "~/.signalbot/audit.db",
			RetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Addr:     "127.0.0.1:9464",
			Endpoint: "/metrics",
		},
	}
}
