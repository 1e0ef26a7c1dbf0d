package main

import "autoapply-engine/internal/source"

// jobBoards returns the scrapers for the boards the engine knows how to
// search. Selectors track each board's public listing markup.
func jobBoards(pacer *source.HostLimiter) []source.JobSource {
	configs := []source.BoardConfig{
		{
			Name:       "indeed",
			BaseURL:    "https://www.indeed.com",
			SearchPath: "/jobs",
			QueryParam: "q",
			LocParam:   "l",
			CardSel:    "div.job_seen_beacon",
			TitleSel:   "h2.jobTitle",
			CompanySel: "span.companyName",
			LinkSel:    "h2.jobTitle a",
			SnippetSel: "div.job-snippet",
			DescSel:    "#jobDescriptionText",
		},
		{
			Name:       "linkedin",
			BaseURL:    "https://www.linkedin.com",
			SearchPath: "/jobs/search",
			QueryParam: "keywords",
			LocParam:   "location",
			CardSel:    "div.base-card",
			TitleSel:   "h3.base-search-card__title",
			CompanySel: "h4.base-search-card__subtitle",
			LinkSel:    "a.base-card__full-link",
			SnippetSel: "p.job-search-card__snippet",
			DescSel:    "div.show-more-less-html__markup",
		},
		{
			Name:       "glassdoor",
			BaseURL:    "https://www.glassdoor.com",
			SearchPath: "/Job/jobs.htm",
			QueryParam: "sc.keyword",
			LocParam:   "locKeyword",
			CardSel:    "li.JobsList_jobListItem__wjTHv",
			TitleSel:   "a.JobCard_jobTitle__GLyJ1",
			CompanySel: "span.EmployerProfile_compactEmployerName__9MGcV",
			LinkSel:    "a.JobCard_jobTitle__GLyJ1",
			SnippetSel: "div.JobCard_jobDescriptionSnippet__l1tnl",
			DescSel:    "div.JobDetails_jobDescription__uW_fK",
		},
	}

	out := make([]source.JobSource, 0, len(configs))
	for _, c := range configs {
		out = append(out, source.NewBoard(c, pacer))
	}
	return out
}
