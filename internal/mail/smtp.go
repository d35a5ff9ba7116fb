package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends each email as a plain-text message.
type SMTPSender struct {
	cfg      SMTPConfig
	logger   *zap.Logger
	sendMail sendFunc
	now      func() time.Time
}

func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if err := validate.Var(cfg.From, "required,email"); err != nil {
		return nil, fmt.Errorf("smtp from address %q is invalid: %w", cfg.From, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{cfg: cfg, logger: logger, sendMail: smtp.SendMail, now: time.Now}, nil
}

func (s *SMTPSender) Send(ctx context.Context, emails []Email) ([]Result, error) {
	addr := net.JoinHostPort(s.cfg.Host, portString(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	results := make([]Result, 0, len(emails))
	for _, e := range emails {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		if err := validate.Struct(e); err != nil {
			results = append(results, Result{To: e.ToEmail, Status: StatusFailed, Error: err.Error()})
			s.logger.Warn("skipping invalid email", zap.String("to", e.ToEmail), zap.Error(err))
			continue
		}

		if err := s.sendMail(addr, auth, s.cfg.From, []string{e.ToEmail}, s.message(e)); err != nil {
			results = append(results, Result{To: e.ToEmail, Status: StatusFailed, Error: err.Error()})
			s.logger.Warn("sending email failed",
				zap.String("to", e.ToEmail),
				zap.String("supplier_id", e.Meta.SupplierID),
				zap.Error(err),
			)
			continue
		}

		results = append(results, Result{To: e.ToEmail, Status: StatusSent})
		s.logger.Info("email sent",
			zap.String("to", e.ToEmail),
			zap.String("category", e.Meta.Category),
		)
	}
	return results, nil
}

func (s *SMTPSender) message(e Email) []byte {
	from := s.cfg.From
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.From)
	}
	to := e.ToEmail
	if e.ToName != "" {
		to = fmt.Sprintf("%s <%s>", e.ToName, e.ToEmail)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", headerSafe(e.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	body := strings.ReplaceAll(e.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func portString(port int) string {
	if port <= 0 {
		port = 587
	}
	return strconv.Itoa(port)
}
