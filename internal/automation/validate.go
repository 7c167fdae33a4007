package automation

import "strings"

// validateSubscription checks the subscribe inputs. The email check is
// deliberately syntactic: exactly one "@", non-whitespace on both sides,
// and a "." somewhere after the "@". Anything stricter belongs to the
// transport provider, which sees the real bounce.
func validateSubscription(email, firstName string) error {
	if firstName == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if !validEmail(email) {
		return &ValidationError{Field: "email", Message: "email address is malformed"}
	}
	return nil
}

func validEmail(email string) bool {
	if strings.Count(email, "@") != 1 {
		return false
	}
	at := strings.Index(email, "@")
	local, domain := email[:at], email[at+1:]
	if local == "" || domain == "" {
		return false
	}
	if strings.ContainsAny(local, " \t") || strings.ContainsAny(domain, " \t") {
		return false
	}
	return strings.Contains(domain, ".")
}
