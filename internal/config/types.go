package config

// Config is the root configuration for smsrelay.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	Forwarding ForwardingConfig `yaml:"forwarding,omitempty"`
	SMS        SMSConfig        `yaml:"sms,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
	OutcomeLog OutcomeLogConfig `yaml:"outcomeLog,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Hooks      HooksConfig      `yaml:"hooks,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server that receives inbound
// messages and streams outcomes.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            GatewayTLS  `yaml:"tls,omitempty"`
	InboundSecret  string      `yaml:"inboundSecret,omitempty"` // HMAC-SHA256 key for POST /v1/messages
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password" | "none"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// ForwardingConfig tunes matching and delivery.
type ForwardingConfig struct {
	Enabled      *bool         `yaml:"enabled,omitempty"` // default true
	OriginPrefix *string       `yaml:"originPrefix,omitempty"`
	MaxAttempts  int           `yaml:"maxAttempts,omitempty"`
	BackoffMs    int           `yaml:"backoffMs,omitempty"`
	WaitBudgetMs int           `yaml:"waitBudgetMs,omitempty"`
	Webhook      WebhookConfig `yaml:"webhook,omitempty"`
}

// WebhookConfig holds per-call webhook timeouts.
type WebhookConfig struct {
	ConnectTimeoutMs int `yaml:"connectTimeoutMs,omitempty"`
	ReadTimeoutMs    int `yaml:"readTimeoutMs,omitempty"`
	TotalTimeoutMs   int `yaml:"totalTimeoutMs,omitempty"`
}

// SMSConfig configures outbound SMS transports. Each transport is an HTTP
// SMS gateway bound to one SIM.
type SMSConfig struct {
	Default *SMSGatewayEntry           `yaml:"default,omitempty"`
	SIMs    map[string]SMSGatewayEntry `yaml:"sims,omitempty"` // keyed by SIM selector
}

// SMSGatewayEntry is one HTTP SMS gateway endpoint.
type SMSGatewayEntry struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token,omitempty"`
	TimeoutMs int    `yaml:"timeoutMs,omitempty"`
}

// StoreConfig selects where channels, rules and the outcome log live.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"` // sqlite file, or "memory"
}

// OutcomeLogConfig bounds the user-visible outcome log.
type OutcomeLogConfig struct {
	Retention     int `yaml:"retention,omitempty"`
	MaxLineLength int `yaml:"maxLineLength,omitempty"`
}

// LoggingConfig controls operational logging.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig runs external commands on lifecycle events.
type HooksConfig struct {
	MessageReceived []HookEntry `yaml:"messageReceived,omitempty"`
	DeliveryOutcome []HookEntry `yaml:"deliveryOutcome,omitempty"`
	DispatchDone    []HookEntry `yaml:"dispatchDone,omitempty"`
	RulesChanged    []HookEntry `yaml:"rulesChanged,omitempty"`
	GatewayStart    []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop     []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry is one command hook. The event payload is written to its stdin
// as JSON.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
