package interview

import (
	"fmt"
	"strings"
)

// SkipReason reports why phase should be skipped for ictx, or "" when it
// should run. Required phases always run.
func SkipReason(phase *Phase, candidate *CandidateProfile, role *TargetRole, company *CompanyInfo) string {
	if !phase.Optional || phase.SkipConditions == nil {
		return ""
	}
	cond := phase.SkipConditions

	if cond.MinExperienceLevel != "" && candidate.ExperienceLevel.Rank() < cond.MinExperienceLevel.Rank() {
		return fmt.Sprintf("experience level %q below minimum %q", candidate.ExperienceLevel, cond.MinExperienceLevel)
	}

	if len(cond.RequiredIndustries) > 0 && !industryMatches(company.Industry, cond.RequiredIndustries) {
		return fmt.Sprintf("company industry %q not in %v", company.Industry, cond.RequiredIndustries)
	}

	if len(cond.RoleCategories) > 0 && !categoryMatches(role.Category, cond.RoleCategories) {
		return fmt.Sprintf("role category %q not in %v", role.Category, cond.RoleCategories)
	}

	return ""
}

// industryMatches is a case-insensitive substring match of the company
// industry against any required industry.
func industryMatches(industry string, required []string) bool {
	industry = strings.ToLower(strings.TrimSpace(industry))
	if industry == "" {
		return false
	}
	for _, r := range required {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" && strings.Contains(industry, r) {
			return true
		}
	}
	return false
}

func categoryMatches(category string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(category)) {
			return true
		}
	}
	return false
}
