package diagnostics

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"portalproxy-backend/internal/components/assert"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

// Mailer delivers an alert to the operators.
//
// note: fault injection point
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	Recipients   []string `json:"recipients"`
}

func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && len(c.Recipients) > 0
}

type SmtpMailer struct {
	config SmtpConfig
}

func NewSmtpMailer(config SmtpConfig) SmtpMailer {
	assert.NotEmptyStr(config.Server)
	return SmtpMailer{config: config}
}

// used when the caller gives no deadline of its own
const defaultSendTimeout = 30 * time.Second

func (m SmtpMailer) Send(ctx context.Context, subject, body string) error {
	ctx, span := tracer.Start(ctx, "SendAlert")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Portal Proxy <%s>", m.config.EmailAddress)
	mail.To = m.config.Recipients
	mail.Subject = subject
	mail.Text = []byte(body)

	err := m.send(ctx, mail)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}

// send delivers `mail` like email.Email.Send does, except that the whole smtp
// conversation is bounded by ctx. AUTH is only attempted when the server offers it.
func (m SmtpMailer) send(ctx context.Context, mail *email.Email) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultSendTimeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()

	message, err := mail.Bytes()
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	var dialer net.Dialer
	addr := net.JoinHostPort(m.config.Server, strconv.Itoa(m.config.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	err = conn.SetDeadline(deadline)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	client, err := smtp.NewClient(conn, m.config.Server)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		err = client.StartTLS(&tls.Config{ServerName: m.config.Server})
		if err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if ok, _ := client.Extension("AUTH"); ok && m.config.Password != "" {
		err = client.Auth(smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server))
		if err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	err = client.Mail(m.config.EmailAddress)
	if err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, recipient := range mail.To {
		err = client.Rcpt(recipient)
		if err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", recipient, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	_, err = w.Write(message)
	if err != nil {
		return fmt.Errorf("write email: %w", err)
	}
	err = w.Close()
	if err != nil {
		return fmt.Errorf("write email: %w", err)
	}
	return client.Quit()
}

func formatAlert(a Attempt) (subject, body string) {
	subject = fmt.Sprintf("Grades for %s could not be parsed", a.Institution)
	body = fmt.Sprintf(`No grade records could be read from a page served by %s.

institution: %s
region: %s
page: %s%s
format: %s
time: %s

The student saw an empty grade list. Check whether the portal changed its markup.`,
		a.BaseUrl,
		a.Institution,
		a.Region,
		a.BaseUrl, a.Path,
		a.Format,
		a.CreatedAt.Format("2006-01-02 15:04:05 MST"),
	)
	return subject, body
}
