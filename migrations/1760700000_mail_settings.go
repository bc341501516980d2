package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"

	"ticketing/config"
)

// Configures the application mailer used for OTP and ticket notifications.
func init() {
	m.Register(func(app core.App) error {
		cfg := config.LoadConfig()

		settings := app.Settings()
		settings.Meta.AppName = "Ticketing"
		settings.Meta.SenderName = cfg.MailFromName
		settings.Meta.SenderAddress = cfg.MailFromAddress

		if cfg.SMTPHost != "" {
			settings.SMTP.Enabled = true
			settings.SMTP.Host = cfg.SMTPHost
			settings.SMTP.Port = cfg.SMTPPort
			settings.SMTP.Username = cfg.SMTPUsername
			settings.SMTP.Password = cfg.SMTPPassword
		}

		return app.Save(settings)
	}, nil)
}
