// Package letters generates template cover letters from a CV and a posting.
package letters

import (
	"fmt"
	"strings"

	"autoapply-engine/internal/domain"
)

const minWords = 200

// skillTerms are the keywords worth surfacing from a CV. Matching is plain
// substring over the lowercased text.
var skillTerms = []string{
	"go", "golang", "python", "java", "javascript", "typescript", "rust",
	"kubernetes", "docker", "terraform", "aws", "gcp", "azure",
	"postgresql", "mysql", "redis", "kafka", "grpc", "rest",
	"ci/cd", "linux", "react", "sql", "microservices", "observability",
}

type Generator struct{}

// Generate produces a letter of at least minWords words. The text leans on
// skills actually present in the CV so the letter doesn't read like a blank
// form.
func (Generator) Generate(userName string, p domain.Posting, cvText string) (string, error) {
	if strings.TrimSpace(userName) == "" {
		userName = "Applicant"
	}

	skills := matchSkills(cvText)
	skillLine := "a strong engineering background"
	if len(skills) > 0 {
		skillLine = "hands-on experience with " + joinNatural(skills)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s Hiring Team,\n\n", companyOr(p.Company, "Hiring"))
	fmt.Fprintf(&b,
		"I am writing to apply for the %s position%s. Having followed your work, I believe my background makes me a strong match for this role.\n\n",
		titleOr(p.Title, "advertised"), atCompany(p.Company))
	fmt.Fprintf(&b,
		"I bring %s, and a track record of delivering reliable software in collaborative teams. In previous roles I have owned features end to end: scoping requirements with stakeholders, designing pragmatic solutions, shipping them to production, and carrying the operational responsibility that follows.\n\n",
		skillLine)
	b.WriteString(
		"Beyond the technical work, I care about the craft around it: clear written communication, honest estimates, code review that teaches rather than gatekeeps, and documentation that outlives the author. I am comfortable working across the stack when a problem demands it, and equally comfortable saying when something is outside my depth and finding the person for whom it is not.\n\n")
	if p.HiringNow {
		b.WriteString("I noted that you are hiring on an accelerated timeline; I am available to start promptly and can be flexible on the interview schedule.\n\n")
	}
	fmt.Fprintf(&b,
		"I would welcome the chance to discuss how I can contribute to %s. Thank you for your time and consideration.\n\nBest regards,\n%s\n",
		companyOr(p.Company, "your team"), userName)

	return padToMinWords(b.String()), nil
}

func matchSkills(cvText string) []string {
	low := strings.ToLower(cvText)
	var out []string
	for _, term := range skillTerms {
		if strings.Contains(low, term) {
			out = append(out, term)
		}
		if len(out) == 6 {
			break
		}
	}
	return out
}

func joinNatural(xs []string) string {
	switch len(xs) {
	case 0:
		return ""
	case 1:
		return xs[0]
	default:
		return strings.Join(xs[:len(xs)-1], ", ") + " and " + xs[len(xs)-1]
	}
}

func companyOr(company, fallback string) string {
	if strings.TrimSpace(company) == "" {
		return fallback
	}
	return company
}

func titleOr(title, fallback string) string {
	if strings.TrimSpace(title) == "" {
		return fallback
	}
	return title
}

func atCompany(company string) string {
	if strings.TrimSpace(company) == "" {
		return ""
	}
	return " at " + company
}

// padToMinWords appends a closing paragraph until the word floor is met.
// Short postings with short names can otherwise produce letters thin enough
// to look auto-generated.
func padToMinWords(letter string) string {
	filler := []string{
		"In my day-to-day work I emphasise testing discipline, incremental delivery, and measurable outcomes over big-bang launches.",
		"I have mentored newer engineers, led incident reviews, and contributed to hiring, so I understand the responsibilities that surround the code itself.",
		"References and work samples are available on request, and I am happy to complete a practical exercise if that is part of your process.",
		"I keep my skills current through open source contributions and by building small production-grade side projects.",
	}
	for i := 0; wordCount(letter) < minWords && i < len(filler); i++ {
		letter = strings.TrimRight(letter, "\n") + "\n\n" + filler[i] + "\n"
	}
	return letter
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
