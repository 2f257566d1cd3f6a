package config

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"8080"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"FLOWMAIL_POSTGRES_HOST,required"`
	Port            string `env:"FLOWMAIL_POSTGRES_PORT,required"`
	User            string `env:"FLOWMAIL_POSTGRES_USER,required"`
	DBName          string `env:"FLOWMAIL_POSTGRES_DB_NAME,required"`
	Password        string `env:"FLOWMAIL_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"FLOWMAIL_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"FLOWMAIL_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"FLOWMAIL_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"FLOWMAIL_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"FLOWMAIL_POSTGRES_SSL_MODE" envDefault:"disable"`
}

// S3StorageConfig is optional; when incomplete, attachments fall back to
// inline database storage.
type S3StorageConfig struct {
	Region                string `env:"AWS_REGION"`
	AccessKeyID           string `env:"AWS_ACCESS_KEY_ID"`
	AccessKeySecret       string `env:"AWS_SECRET_ACCESS_KEY"`
	EmailAttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT"`
}
