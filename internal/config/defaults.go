package config

// Default returns the built-in configuration. The shipped config/config.yml
// mirrors these values; this is the fallback when that file is absent.
func Default() Config {
	var cfg Config

	cfg.App.Port = 38471
	cfg.App.DataDir = "."

	cfg.Discovery.FullSpec = "@every 1h"
	cfg.Discovery.PrioritySpec = "@every 30m"
	cfg.Discovery.CleanupSpec = "@every 6h"
	cfg.Discovery.RetentionHours = 72
	cfg.Discovery.TitlesPerCycle = 10
	cfg.Discovery.Titles = []string{
		"software engineer", "senior software engineer", "backend developer",
		"frontend developer", "full stack developer", "devops engineer",
		"site reliability engineer", "data engineer", "data scientist",
		"machine learning engineer", "platform engineer", "cloud engineer",
		"qa engineer", "security engineer", "mobile developer",
		"engineering manager", "product manager", "solutions architect",
	}
	cfg.Discovery.Locations = []string{
		"remote", "new york", "san francisco", "austin", "seattle",
		"boston", "chicago", "denver", "atlanta", "los angeles",
	}
	cfg.Discovery.PriorityTitles = []string{
		"software engineer", "senior software engineer", "backend developer",
		"devops engineer", "data engineer", "full stack developer",
	}
	cfg.Discovery.HubLocations = []string{"remote", "new york", "san francisco", "austin"}
	cfg.Discovery.RequestsPerSec = 1
	cfg.Discovery.RequestBurst = 2
	cfg.Discovery.SourceWeights = map[string]float64{
		"google":       1.0,
		"indeed":       0.9,
		"linkedin":     0.8,
		"glassdoor":    0.7,
		"ziprecruiter": 0.7,
		"dice":         0.7,
		"monster":      0.6,
		"simplyhired":  0.6,
		"angellist":    0.6,
	}
	cfg.Discovery.HiringNowTerms = []string{
		"hiring now", "urgently hiring", "immediate start", "immediate opening",
	}
	cfg.Discovery.EmailDenyDomains = []string{"example.com", "test.com", "noreply"}

	cfg.Apply.BatchSize = 5
	cfg.Apply.BrowserSessions = 2
	cfg.Apply.AttemptSeconds = 180
	cfg.Apply.EmailFallback = true

	cfg.Limits.Daily = 50
	cfg.Limits.Weekly = 200

	cfg.Scheduler.PollSeconds = 60

	cfg.Replies.Mailbox = "INBOX"
	cfg.Replies.PollSeconds = 300

	return cfg
}
