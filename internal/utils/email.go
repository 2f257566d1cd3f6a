package utils

import (
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
)

// UniqueEmails de-duplicates addresses case-insensitively, preserving the
// first-seen spelling and order.
func UniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	unique := make([]string, 0, len(emails))

	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		key := strings.ToLower(email)
		if _, exists := seen[key]; !exists {
			seen[key] = struct{}{}
			unique = append(unique, email)
		}
	}

	return unique
}

// ValidEmails keeps only syntactically valid addresses, normalized to their
// clean form, preserving order.
func ValidEmails(emails []string) []string {
	valid := make([]string, 0, len(emails))
	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		validation := mailvalidate.ValidateEmailSyntax(email)
		if !validation.IsValid {
			continue
		}
		valid = append(valid, validation.CleanEmail)
	}
	return valid
}

// RemoveEmail drops every spelling of address from the list, case-insensitively.
func RemoveEmail(emails []string, address string) []string {
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		if !strings.EqualFold(strings.TrimSpace(email), strings.TrimSpace(address)) {
			out = append(out, email)
		}
	}
	return out
}

func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = strings.TrimSpace(email)

	// Handle angle brackets ("Name <email@domain.com>")
	if strings.Contains(email, "<") && strings.Contains(email, ">") {
		startIdx := strings.LastIndex(email, "<") + 1
		endIdx := strings.LastIndex(email, ">")
		if startIdx > 0 && endIdx > startIdx {
			email = email[startIdx:endIdx]
		}
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// EnsureReplySubject prefixes a subject with "Re: " unless it already carries
// a reply prefix.
func EnsureReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}
