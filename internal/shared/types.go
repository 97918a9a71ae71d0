package shared

import "fmt"

type EnvVar string
type Token string

// Macro returns the token wrapped in its %% delimiters.
func (t Token) Macro() string {
	return "%%" + string(t) + "%%"
}

// CustodianConfigFile returns the generated config file name for a region.
func CustodianConfigFile(region string) string {
	return fmt.Sprintf("custodian_%s.yml", region)
}
