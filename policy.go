package authcore

import (
	"strings"
	"unicode"
)

// checkPasswordPolicy evaluates password against every configured rule and
// returns the full violation list. Evaluation never short-circuits so the
// caller can surface all unmet rules at once.
func checkPasswordPolicy(cfg PasswordPolicyConfig, password string) []PasswordRule {
	var violations []PasswordRule

	if len(password) < cfg.MinLength {
		violations = append(violations, RuleMinLength)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if cfg.RequireUppercase && !hasUpper {
		violations = append(violations, RuleUppercase)
	}
	if cfg.RequireLowercase && !hasLower {
		violations = append(violations, RuleLowercase)
	}
	if cfg.RequireDigit && !hasDigit {
		violations = append(violations, RuleDigit)
	}
	if cfg.RequireSymbol && !hasSymbol {
		violations = append(violations, RuleSymbol)
	}

	return violations
}

// normalizeEmail lowercases and trims an email identifier. All store keys
// and provider lookups go through this so "User@X.com" and "user@x.com"
// address the same challenge.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if strings.IndexByte(domain, '@') >= 0 {
		return false
	}
	return strings.IndexByte(domain, '.') > 0
}

// isValidMobile accepts exactly 10 digits.
func isValidMobile(mobile string) bool {
	if len(mobile) != 10 {
		return false
	}
	return isNumericString(mobile)
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
