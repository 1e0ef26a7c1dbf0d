package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus everything a UI should
// show the user before saving.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Discovery.Titles = trimList(out.Discovery.Titles)
	out.Discovery.Locations = trimList(out.Discovery.Locations)
	out.Discovery.PriorityTitles = trimList(out.Discovery.PriorityTitles)
	out.Discovery.HubLocations = trimList(out.Discovery.HubLocations)
	out.Discovery.HiringNowTerms = trimList(out.Discovery.HiringNowTerms)
	out.Discovery.EmailDenyDomains = trimList(out.Discovery.EmailDenyDomains)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Discovery.RetentionHours <= 0 {
		res.addErr("discovery.retention_hours must be > 0")
	}
	if len(out.Discovery.Titles) == 0 {
		res.addWarn("discovery.titles is empty; full discovery cycles will find nothing.")
	}
	if len(out.Discovery.Locations) == 0 {
		res.addWarn("discovery.locations is empty; full discovery cycles will find nothing.")
	}
	if out.Discovery.RequestsPerSec <= 0 {
		res.addErr("discovery.requests_per_sec must be > 0")
	}

	if out.Apply.BatchSize <= 0 {
		res.addErr("apply.batch_size must be > 0")
	}
	if out.Apply.BrowserSessions <= 0 {
		res.addErr("apply.browser_sessions must be > 0")
	}
	if out.Apply.BrowserSessions > out.Apply.BatchSize {
		res.addWarn("apply.browser_sessions (%d) exceeds apply.batch_size (%d); the extra sessions will never be used.",
			out.Apply.BrowserSessions, out.Apply.BatchSize)
	}
	if out.Apply.AttemptSeconds <= 0 {
		res.addErr("apply.attempt_seconds must be > 0")
	} else if out.Apply.AttemptSeconds < 30 {
		res.addWarn("apply.attempt_seconds is very low (%d); browser submissions will rarely finish.", out.Apply.AttemptSeconds)
	}

	if out.Limits.Daily <= 0 {
		res.addErr("limits.daily must be > 0")
	}
	if out.Limits.Weekly <= 0 {
		res.addErr("limits.weekly must be > 0")
	}
	if out.Limits.Weekly < out.Limits.Daily {
		res.addWarn("limits.weekly (%d) is below limits.daily (%d); the weekly cap will dominate.",
			out.Limits.Weekly, out.Limits.Daily)
	}

	if out.Scheduler.PollSeconds <= 0 {
		res.addErr("scheduler.poll_seconds must be > 0")
	} else if out.Scheduler.PollSeconds < 10 {
		res.addWarn("scheduler.poll_seconds is very low (%d); the poll loop will hammer the store.", out.Scheduler.PollSeconds)
	}

	// notify required fields if enabled (password lives in the keychain)
	if out.Notify.Enabled {
		if strings.TrimSpace(out.Notify.SMTPHost) == "" {
			res.addErr("notify.smtp_host is required when notify.enabled=true")
		}
		if out.Notify.SMTPPort == 0 {
			res.addErr("notify.smtp_port is required when notify.enabled=true")
		}
		if strings.TrimSpace(out.Notify.From) == "" {
			res.addErr("notify.from is required when notify.enabled=true")
		}
	}

	if out.Replies.Enabled {
		if strings.TrimSpace(out.Replies.IMAPHost) == "" {
			res.addErr("replies.imap_host is required when replies.enabled=true")
		}
		if out.Replies.IMAPPort == 0 {
			res.addErr("replies.imap_port is required when replies.enabled=true")
		}
		if strings.TrimSpace(out.Replies.Username) == "" {
			res.addErr("replies.username is required when replies.enabled=true")
		}
		if strings.TrimSpace(out.Replies.Mailbox) == "" {
			res.addWarn("replies.mailbox is empty; defaulting to INBOX.")
		}
	}

	if out.Redis.Enabled && strings.TrimSpace(out.Redis.Addr) == "" {
		res.addErr("redis.addr is required when redis.enabled=true")
	}

	return out, res
}
