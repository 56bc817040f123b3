package config

type SMTPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
	// Disabled makes outbound mail a logged no-op, for local development.
	Disabled bool `yaml:"disabled"`
}

func loadSMTPConfig() *SMTPConfig {
	return &SMTPConfig{
		Host:      getEnv("SMTP_HOST", "localhost"),
		Port:      getEnvAsInt("SMTP_PORT", 587),
		Username:  getEnv("SMTP_USERNAME", ""),
		Password:  getEnv("SMTP_PASSWORD", ""),
		FromEmail: getEnv("SMTP_FROM_EMAIL", "alerts@safecircle.app"),
		FromName:  getEnv("SMTP_FROM_NAME", "SafeCircle"),
		Disabled:  getEnvAsBool("SMTP_DISABLED", true),
	}
}
