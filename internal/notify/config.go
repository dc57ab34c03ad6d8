package notify

import "time"

// Config is the outbound SMTP account. An empty Host disables email.
type Config struct {
	Host     string `envconfig:"SMTP_HOST"`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	Username string `envconfig:"SMTP_USERNAME"`
	Password string `envconfig:"SMTP_PASSWORD"`
	From     string `envconfig:"SMTP_FROM" default:"leads@chative-realty.example"`
	FromName string `envconfig:"SMTP_FROM_NAME" default:"Chative Realty"`
	Timeout  string `envconfig:"SMTP_TIMEOUT" default:"15s"`
}

func (c Config) Enabled() bool { return c.Host != "" }

func (c Config) timeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}
