package internal

import "time"

// Config defines the environment variables of the chat clients.
type Config struct {
	APIBaseURL           string        `env:"CHAT_API_BASE_URL,required=true"`
	ChannelURL           string        `env:"CHAT_CHANNEL_URL,required=true"`
	SessionToken         string        `env:"CHAT_SESSION_TOKEN,required=true"`
	ConversationID       string        `env:"CHAT_CONVERSATION_ID,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT,default=30s"`
	HandshakeTimeout     time.Duration `env:"HANDSHAKE_TIMEOUT,default=5s"`
	ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY,default=1s"`
	ReconnectMaxDelay    time.Duration `env:"RECONNECT_MAX_DELAY,default=30s"`
	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS,default=5"`
}
