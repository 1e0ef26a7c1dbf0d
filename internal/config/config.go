package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LeverCompany is one tracked company on the Lever ATS.
type LeverCompany struct {
	Slug string `yaml:"slug" json:"slug"`
	Name string `yaml:"name" json:"name"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Discovery struct {
		FullSpec         string             `yaml:"full_spec" json:"full_spec"`         // cron spec, e.g. "@every 1h"
		PrioritySpec     string             `yaml:"priority_spec" json:"priority_spec"` // e.g. "@every 30m"
		CleanupSpec      string             `yaml:"cleanup_spec" json:"cleanup_spec"`   // e.g. "@every 6h"
		RetentionHours   int                `yaml:"retention_hours" json:"retention_hours"`
		TitlesPerCycle   int                `yaml:"titles_per_cycle" json:"titles_per_cycle"`
		Titles           []string           `yaml:"titles" json:"titles"`
		Locations        []string           `yaml:"locations" json:"locations"`
		PriorityTitles   []string           `yaml:"priority_titles" json:"priority_titles"`
		HubLocations     []string           `yaml:"hub_locations" json:"hub_locations"`
		RequestsPerSec   float64            `yaml:"requests_per_sec" json:"requests_per_sec"`
		RequestBurst     int                `yaml:"request_burst" json:"request_burst"`
		SourceWeights    map[string]float64 `yaml:"source_weights" json:"source_weights"`
		HiringNowTerms   []string           `yaml:"hiring_now_terms" json:"hiring_now_terms"`
		EmailDenyDomains []string           `yaml:"email_deny_domains" json:"email_deny_domains"`
		LeverCompanies   []LeverCompany     `yaml:"lever_companies" json:"lever_companies"`
	} `yaml:"discovery" json:"discovery"`

	Apply struct {
		BatchSize       int  `yaml:"batch_size" json:"batch_size"`
		BrowserSessions int  `yaml:"browser_sessions" json:"browser_sessions"`
		AttemptSeconds  int  `yaml:"attempt_seconds" json:"attempt_seconds"`
		EmailFallback   bool `yaml:"email_fallback" json:"email_fallback"`
	} `yaml:"apply" json:"apply"`

	Limits struct {
		Daily  int `yaml:"daily" json:"daily"`
		Weekly int `yaml:"weekly" json:"weekly"`
	} `yaml:"limits" json:"limits"`

	Scheduler struct {
		PollSeconds int `yaml:"poll_seconds" json:"poll_seconds"`
	} `yaml:"scheduler" json:"scheduler"`

	Notify struct {
		Enabled  bool   `yaml:"enabled" json:"enabled"`
		SMTPHost string `yaml:"smtp_host" json:"smtp_host"`
		SMTPPort int    `yaml:"smtp_port" json:"smtp_port"`
		From     string `yaml:"from" json:"from"`
		Username string `yaml:"username" json:"username"`
	} `yaml:"notify" json:"notify"`

	Replies struct {
		Enabled     bool   `yaml:"enabled" json:"enabled"`
		IMAPHost    string `yaml:"imap_host" json:"imap_host"`
		IMAPPort    int    `yaml:"imap_port" json:"imap_port"`
		Username    string `yaml:"username" json:"username"`
		Mailbox     string `yaml:"mailbox" json:"mailbox"`
		PollSeconds int    `yaml:"poll_seconds" json:"poll_seconds"`
	} `yaml:"replies" json:"replies"`

	Redis struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		Addr    string `yaml:"addr" json:"addr"`
		DB      int    `yaml:"db" json:"db"`
	} `yaml:"redis" json:"redis"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
