package configuration

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/accessdesk/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

type DatabaseOptions struct {
	Enabled  bool   `env:"DB_ENABLED" envDefault:"false"`
	Name     string `env:"DB_NAME" envDefault:"accessdesk"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type AuthzOptions struct {
	ModelPath  string `env:"AUTHZ_MODEL_PATH"`
	PolicyPath string `env:"AUTHZ_POLICY_PATH"`
}

// AccessOptions tune the authorization core.
type AccessOptions struct {
	// FallbackApproverID is the identity with override authority over
	// every pending request.
	FallbackApproverID string `env:"ACCESS_FALLBACK_APPROVER" envDefault:"maria"`
	// LeadAdminNeedsApproval permits leads to request admin-tier access,
	// subject to approval. When false such requests are denied.
	LeadAdminNeedsApproval bool `env:"ACCESS_LEAD_ADMIN_NEEDS_APPROVAL" envDefault:"true"`
	// MaxMessageLength bounds rejection reasons and composed notifications.
	MaxMessageLength int `env:"ACCESS_MAX_MESSAGE_LENGTH" envDefault:"280"`
	// EscalationAutoResolve is how long an escalation stays open before the
	// simulated owner decision fires. Zero disables the timer.
	EscalationAutoResolve time.Duration `env:"ACCESS_ESCALATION_AUTO_RESOLVE" envDefault:"30s"`
}

func (a *AccessOptions) Validate() error {
	if a.FallbackApproverID == "" {
		return fmt.Errorf("access: fallback approver id is required")
	}
	if a.MaxMessageLength <= 0 {
		return fmt.Errorf("access: MaxMessageLength must be positive, got %d", a.MaxMessageLength)
	}
	if a.EscalationAutoResolve < 0 {
		return fmt.Errorf("access: EscalationAutoResolve must be non-negative, got %s", a.EscalationAutoResolve)
	}
	return nil
}

type Configuration struct {
	Database DatabaseOptions
	Authz    AuthzOptions
	Access   AccessOptions

	Address     string `env:"ADDRESS" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"3200"`
	GoAppEnv    string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath     string `env:"LOG_PATH" envDefault:""`
	SessionName string `env:"SESSION_NAME" envDefault:"accessdesk"`

	logger *logrus.Logger
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	if _, err := LoadEnv(envFiles); err != nil {
		return err
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.Access.Validate(); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if c.LogPath != "" {
		c.logger = logging.FileLogger(level, c.LogPath)
	} else {
		c.logger = logging.ConsoleLogger(level)
	}
	return nil
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}
