package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/cyplat/gandalf/internal/domain"
	"github.com/cyplat/gandalf/internal/log"
)

const verifySubject = "Verify your email address"

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Message is a rendered verification email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Compose renders the verification email for msg; verifyBase is the URL the
// token and user id are appended to as query parameters.
func Compose(verifyBase string, msg domain.VerificationEmail) (Message, error) {
	u, err := url.Parse(verifyBase)
	if err != nil {
		return Message{}, fmt.Errorf("verify url: %w", err)
	}
	q := u.Query()
	q.Set("user_id", msg.UserID.String())
	q.Set("token", msg.Token)
	u.RawQuery = q.Encode()
	link := u.String()

	return Message{
		To:      msg.Email,
		Subject: verifySubject,
		Text:    "Welcome! Confirm your email address by opening this link:\n\n" + link + "\n\nThe link expires in 24 hours.",
		HTML:    `<p>Welcome! Confirm your email address by opening <a href="` + link + `">this link</a>.</p><p>The link expires in 24 hours.</p>`,
	}, nil
}

// SMTPSender delivers verification emails through an SMTP relay.
type SMTPSender struct {
	cfg        SMTPConfig
	verifyBase string
	d          *gomail.Dialer
	log        *zap.Logger
}

func NewSMTPSender(cfg SMTPConfig, verifyBase string, lg *zap.Logger) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" {
		return nil, fmt.Errorf("SMTP host, port, and sender email must be configured")
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	d.SSL = cfg.Port == 465
	return &SMTPSender{cfg: cfg, verifyBase: verifyBase, d: d, log: lg.Named("smtp")}, nil
}

func (s *SMTPSender) SendVerification(ctx context.Context, msg domain.VerificationEmail) error {
	rendered, err := Compose(s.verifyBase, msg)
	if err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", rendered.To)
	m.SetHeader("Subject", rendered.Subject)
	m.SetBody("text/plain", rendered.Text)
	m.AddAlternative("text/html", rendered.HTML)

	lg := log.FromContext(ctx, s.log, zap.String("user_id", msg.UserID.String()), log.Email(msg.Email))

	// gomail has no context support; abandon the dial when ctx expires.
	done := make(chan error, 1)
	go func() { done <- s.d.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		lg.Warn("verification email cancelled", zap.Error(ctx.Err()))
		return fmt.Errorf("email sending cancelled or timed out: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send verification email: %w", err)
		}
	}
	lg.Info("verification email sent")
	return nil
}

// LogSender writes the verification link to the log instead of sending it.
// Used when no SMTP relay is configured.
type LogSender struct {
	verifyBase string
	log        *zap.Logger
}

func NewLogSender(verifyBase string, lg *zap.Logger) *LogSender {
	return &LogSender{verifyBase: verifyBase, log: lg.Named("mail")}
}

func (s *LogSender) SendVerification(ctx context.Context, msg domain.VerificationEmail) error {
	rendered, err := Compose(s.verifyBase, msg)
	if err != nil {
		return err
	}
	log.FromContext(ctx, s.log).Info("[MAIL] verification",
		zap.String("user_id", msg.UserID.String()),
		log.Email(msg.Email),
		zap.String("subject", rendered.Subject),
		zap.String("body", rendered.Text),
	)
	return nil
}
