package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPNotifier sends notifications as HTML mail through a relay that
// accepts unauthenticated submission (the usual setup is a local
// forwarder; credentials are the relay's concern, not ours).
type SMTPNotifier struct {
	addr string
	from string
	send func(addr, from string, to []string, msg []byte) error
}

// NewSMTPNotifier constructs an SMTP notifier for the given relay address
// ("host:port") and sender.
func NewSMTPNotifier(addr, from string) (*SMTPNotifier, error) {
	if addr == "" {
		return nil, errors.New("smtp notifier: empty relay address")
	}
	if from == "" {
		return nil, errors.New("smtp notifier: empty sender")
	}
	return &SMTPNotifier{
		addr: addr,
		from: from,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}, nil
}

// Notify sends the notification to its recipient.
func (s *SMTPNotifier) Notify(ctx context.Context, n Notification) error {
	if n.Recipient == "" {
		return errors.New("smtp notifier: no recipient configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", n.Recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", n.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(n.Body)

	return s.send(s.addr, s.from, []string{n.Recipient}, []byte(msg.String()))
}
