package internal

import (
	"chat-match/errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Config struct {
	Host                 string        `env:"HOST,default=localhost" validate:"required"`
	Port                 int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	DebugPort            int           `env:"DEBUG_PORT,default=0" validate:"min=0,max=65535"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH"`
	SessionTTL           time.Duration `env:"SESSION_TTL,default=1h" validate:"min=1s"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"min=1"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=2s" validate:"min=1ms"`
	MatchAttempts        int           `env:"MATCH_ATTEMPTS,default=3" validate:"min=1,max=20"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=2000" validate:"min=1"`
	KeepaliveInterval    time.Duration `env:"KEEPALIVE_INTERVAL,default=5m" validate:"min=1s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"min=1s"`
	GCInterval           time.Duration `env:"GC_INTERVAL,default=10m" validate:"min=1s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"min=1ms"`
	ReadTimeout          time.Duration `env:"READ_TIMEOUT,default=60s" validate:"min=1s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"min=1s"`
	EnableModeration     bool          `env:"ENABLE_MODERATION,default=false"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
}

// Validate checks the bounds of every setting. The keepalive must run well within
// the session TTL, otherwise live sessions would expire.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.KeepaliveInterval >= c.SessionTTL {
		return fmt.Errorf("invalid config: KEEPALIVE_INTERVAL (%s) must be shorter than SESSION_TTL (%s)",
			c.KeepaliveInterval, c.SessionTTL)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins splits ALLOWED_ORIGINS on commas. Empty means any origin.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w, got %q", errors.ErrInvalidReplacement, str)
	}
	return r[0], nil
}
