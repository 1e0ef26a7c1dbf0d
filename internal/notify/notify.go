// Package notify delivers user-facing mail for schedule and application
// events. When SMTP is not configured the engine falls back to a logging
// notifier so callers never need a nil check.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"autoapply-engine/internal/apply"
	"autoapply-engine/internal/domain"
)

type Notifier interface {
	SendConfirmation(ctx context.Context, userEmail string, app domain.Application) error
	SendRunSummary(ctx context.Context, userEmail string, summary apply.RunSummary) error
	SendScheduleNotice(ctx context.Context, userEmail string, sched domain.Schedule) error
}

// SMTPNotifier sends plain-text mail over authenticated SMTP. The password
// comes from a callback so it can live in the OS keyring.
type SMTPNotifier struct {
	Host     string
	Port     int
	From     string
	Username string
	Password func() (string, error)

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(host string, port int, from, username string, password func() (string, error)) *SMTPNotifier {
	return &SMTPNotifier{
		Host: host, Port: port, From: from, Username: username,
		Password: password,
		send:     smtp.SendMail,
	}
}

func (n *SMTPNotifier) SendConfirmation(ctx context.Context, userEmail string, app domain.Application) error {
	subject := fmt.Sprintf("Application submitted: %s at %s", app.Title, app.Company)
	body := fmt.Sprintf(
		"Your application for %s at %s was submitted via %s on %s.\n\nPosting: %s\n",
		app.Title, app.Company, app.Method, app.AppliedAt.Format("2006-01-02 15:04"), app.URL)
	return n.mail(ctx, userEmail, subject, body)
}

func (n *SMTPNotifier) SendRunSummary(ctx context.Context, userEmail string, summary apply.RunSummary) error {
	subject := fmt.Sprintf("Application run finished: %d submitted", summary.Succeeded)

	var b strings.Builder
	fmt.Fprintf(&b, "Candidates considered: %d\nSubmitted: %d\nFailed: %d\n",
		summary.Candidates, summary.Succeeded, summary.Failed)
	if summary.LimitHit {
		fmt.Fprintf(&b, "\n%s\n", summary.LimitMsg)
	}
	b.WriteString("\n")
	for _, r := range summary.Results {
		status := "failed"
		if r.Success {
			status = "ok"
		}
		fmt.Fprintf(&b, "- [%s] %s at %s (%s)\n", status, r.Title, r.Company, r.Source)
	}
	return n.mail(ctx, userEmail, subject, b.String())
}

func (n *SMTPNotifier) SendScheduleNotice(ctx context.Context, userEmail string, sched domain.Schedule) error {
	subject := fmt.Sprintf("Application schedule created: %s", sched.JobTitle)
	body := fmt.Sprintf(
		"A %s schedule for %q in %q was created. First run: %s.\n",
		sched.ScheduleType, sched.JobTitle, sched.Location, firstRun(sched))
	return n.mail(ctx, userEmail, subject, body)
}

func firstRun(sched domain.Schedule) string {
	if sched.NextRun == nil {
		return "not scheduled"
	}
	return sched.NextRun.Format("2006-01-02 15:04 MST")
}

func (n *SMTPNotifier) mail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("notify: empty recipient")
	}

	pw, err := n.Password()
	if err != nil {
		return fmt.Errorf("notify: smtp password: %w", err)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		n.From, to, subject, body)

	addr := fmt.Sprintf("%s:%d", n.Host, n.Port)
	auth := smtp.PlainAuth("", n.Username, pw, n.Host)
	if err := n.send(addr, auth, n.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("notify: send to %s: %w", to, err)
	}
	return nil
}

// LogNotifier is the no-SMTP fallback: everything lands in the engine log.
type LogNotifier struct{}

func (LogNotifier) SendConfirmation(_ context.Context, userEmail string, app domain.Application) error {
	log.Printf("[notify] (log only) confirmation to %s: %s at %s via %s",
		userEmail, app.Title, app.Company, app.Method)
	return nil
}

func (LogNotifier) SendRunSummary(_ context.Context, userEmail string, summary apply.RunSummary) error {
	log.Printf("[notify] (log only) summary to %s: submitted=%d failed=%d",
		userEmail, summary.Succeeded, summary.Failed)
	return nil
}

func (LogNotifier) SendScheduleNotice(_ context.Context, userEmail string, sched domain.Schedule) error {
	log.Printf("[notify] (log only) schedule notice to %s: %s", userEmail, sched.JobTitle)
	return nil
}
