package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"trafficscope/internal/config"
	"trafficscope/internal/model"
)

// EmailNotifier implements model.AlertPublisher by mailing each logged
// notification to the configured recipients.
type EmailNotifier struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{cfg: cfg, auth: auth}
}

// Publish renders the notification as a short HTML mail and sends it.
func (n *EmailNotifier) Publish(alert model.LoggedNotification) error {
	subject, body := render(alert)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	recipients := strings.Split(n.cfg.To, ",")

	msg := []byte("To: " + n.cfg.To + "\r\n" +
		"From: " + n.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body)

	if err := smtp.SendMail(addr, n.auth, n.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func render(alert model.LoggedNotification) (subject, body string) {
	switch a := alert.(type) {
	case model.PacketsThresholdExceeded:
		subject = fmt.Sprintf("TrafficScope: packet threshold exceeded at %s", a.When)
		body = fmt.Sprintf("<h3>Packet threshold exceeded</h3>"+
			"<ul><li><b>Threshold:</b> %d packets</li>"+
			"<li><b>Incoming:</b> %d</li><li><b>Outgoing:</b> %d</li>"+
			"<li><b>Time:</b> %s</li></ul>",
			a.Threshold, a.Incoming, a.Outgoing, a.When)
	case model.BytesThresholdExceeded:
		subject = fmt.Sprintf("TrafficScope: byte threshold exceeded at %s", a.When)
		body = fmt.Sprintf("<h3>Byte threshold exceeded</h3>"+
			"<ul><li><b>Threshold:</b> %d %s</li>"+
			"<li><b>Incoming:</b> %d bytes</li><li><b>Outgoing:</b> %d bytes</li>"+
			"<li><b>Time:</b> %s</li></ul>",
			a.Threshold, a.ByteMultiple, a.Incoming, a.Outgoing, a.When)
	case model.FavoriteTransmitted:
		subject = fmt.Sprintf("TrafficScope: favorite connection active at %s", a.When)
		body = fmt.Sprintf("<h3>Favorite connection transmitted</h3>"+
			"<ul><li><b>Connection:</b> %s</li>"+
			"<li><b>Bytes:</b> %d</li><li><b>Packets:</b> %d</li>"+
			"<li><b>Time:</b> %s</li></ul>",
			a.Connection, a.Info.TransmittedBytes, a.Info.TransmittedPackets, a.When)
	default:
		subject = "TrafficScope alert"
		body = fmt.Sprintf("<p>%s at %s</p>", alert.Kind(), alert.Timestamp())
	}
	return subject, body
}
