package shared

import (
	"regexp"
	"strings"
)

var (
	regionRegex    = regexp.MustCompile(`^[a-z]{2}(-gov|-iso[a-z]?)?-[a-z]+-[0-9]+$`)
	accountIDRegex = regexp.MustCompile(`^[0-9]{12}$`)
	arnRegex       = regexp.MustCompile(`^arn:aws[a-zA-Z-]*:[a-z0-9-]+:[a-z0-9-]*:([0-9]{12})?:.+$`)
	emailRegex     = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	tokenRegex     = regexp.MustCompile(`%%([A-Za-z0-9_]+)%%`)
)

// validate aws region code (e.g. us-east-1)
func IsValidRegion(region string) bool {
	return regionRegex.MatchString(region)
}

// validate 12 digit account id
func IsValidAccountID(accountId string) bool {
	return accountIDRegex.MatchString(accountId)
}

// validate arn.  values still containing placeholders are checked after resolution
func IsValidArn(arn string) bool {
	if HasToken(arn) {
		return true
	}
	return arnRegex.MatchString(arn)
}

func IsValidEmail(addr string) bool {
	return emailRegex.MatchString(strings.TrimSpace(addr))
}

// HasToken reports whether s contains a %%NAME%% placeholder.
func HasToken(s string) bool {
	return tokenRegex.MatchString(s)
}

// ReplaceTokens replaces every %%NAME%% placeholder in s with replace(NAME).
func ReplaceTokens(s string, replace func(name string) string) string {
	return tokenRegex.ReplaceAllStringFunc(s, func(match string) string {
		return replace(strings.Trim(match, "%"))
	})
}

// FindTokens returns the names of every %%NAME%% placeholder in s, in order of appearance.
func FindTokens(s string) []string {
	matches := tokenRegex.FindAllStringSubmatch(s, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[1])
	}
	return tokens
}
