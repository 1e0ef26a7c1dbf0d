package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"

	"autoapply-engine/internal/apply"
	"autoapply-engine/internal/domain"
)

// ApplicationSender delivers an application by mail: cover letter as the
// body, CV attached. It rides on the same SMTP transport as the notifier.
type ApplicationSender struct {
	SMTP *SMTPNotifier
}

const attachmentBoundary = "autoapply-mixed-boundary"

func (s *ApplicationSender) SendApplication(ctx context.Context, to string, posting domain.Posting, req apply.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("Application for %s - %s", posting.Title, req.UserName)
	body := req.CoverLetter
	if body == "" {
		body = fmt.Sprintf("Please find my application for the %s position attached.\n\n%s", posting.Title, req.UserName)
	}

	msg, err := buildMixedMessage(s.SMTP.From, to, subject, body, req.CVPath)
	if err != nil {
		return err
	}

	pw, err := s.SMTP.Password()
	if err != nil {
		return fmt.Errorf("application mail: smtp password: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.SMTP.Host, s.SMTP.Port)
	auth := smtp.PlainAuth("", s.SMTP.Username, pw, s.SMTP.Host)
	if err := s.SMTP.send(addr, auth, s.SMTP.From, []string{to}, msg); err != nil {
		return fmt.Errorf("application mail to %s: %w", to, err)
	}
	return nil
}

// buildMixedMessage assembles a multipart/mixed message with the plain-text
// body and, when readable, the CV as a base64 attachment. A missing CV file
// degrades to body-only rather than failing the whole attempt.
func buildMixedMessage(from, to, subject, body, cvPath string) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n", from, to, subject)

	cv, cvErr := os.ReadFile(cvPath)
	if cvPath == "" || cvErr != nil {
		fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n%s", body)
		return []byte(b.String()), nil
	}

	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", attachmentBoundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", attachmentBoundary, body)

	name := filepath.Base(cvPath)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: application/octet-stream\r\nContent-Disposition: attachment; filename=%q\r\nContent-Transfer-Encoding: base64\r\n\r\n",
		attachmentBoundary, name)

	enc := base64.StdEncoding.EncodeToString(cv)
	for len(enc) > 76 {
		b.WriteString(enc[:76] + "\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc + "\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", attachmentBoundary)

	return []byte(b.String()), nil
}
