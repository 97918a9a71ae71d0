package policygen

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/jzelinskie/stringz"
	"github.com/mattn/go-runewidth"
	"github.com/outofoffice3/custodian-policygen/internal/config"
	"github.com/outofoffice3/custodian-policygen/internal/policy"
	"github.com/outofoffice3/custodian-policygen/internal/shared"
)

// rstTimeFormat matches the timestamp layout in the page header.
const rstTimeFormat = "2006-01-02 15:04:05 MST"

// BuildInfo identifies the CI build and commit that produced the docs.
type BuildInfo struct {
	JobName     string
	BuildNumber string
	BuildURL    string
	GitCommit   string
	GitHTMLURL  string
}

// gitRemoteURL reads the origin url of the current checkout.
var gitRemoteURL = func() (string, error) {
	out, err := exec.Command("git", "config", "remote.origin.url").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// BuildInfoFromEnv reads the CI environment, falling back to the git checkout
// for the repository link.
func BuildInfoFromEnv() BuildInfo {
	info := BuildInfo{
		JobName:     os.Getenv(string(shared.EnvJobName)),
		BuildNumber: os.Getenv(string(shared.EnvBuildNumber)),
		BuildURL:    os.Getenv(string(shared.EnvBuildURL)),
		GitCommit:   stringz.DefaultEmpty(os.Getenv(string(shared.EnvGitCommit)), "unknown"),
		GitHTMLURL:  os.Getenv(string(shared.EnvGitHTMLURL)),
	}
	if info.GitHTMLURL == "" {
		if remote, err := gitRemoteURL(); err == nil {
			info.GitHTMLURL = GitHTMLURL(remote)
		}
	}
	return info
}

// GitHTMLURL converts a git remote url into the browsable https url.
func GitHTMLURL(remote string) string {
	u := strings.TrimSpace(remote)
	if u == "" {
		return ""
	}
	u = strings.TrimSuffix(u, ".git")
	switch {
	case strings.HasPrefix(u, "ssh://"):
		u = strings.TrimPrefix(u, "ssh://")
		if i := strings.Index(u, "@"); i >= 0 {
			u = u[i+1:]
		}
		u = "https://" + u
	case strings.HasPrefix(u, "git@"):
		u = "https://" + strings.Replace(strings.TrimPrefix(u, "git@"), ":", "/", 1)
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
	default:
		u = "https://" + u
	}
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

func (b BuildInfo) describe() string {
	if b.JobName == "" && b.BuildNumber == "" && b.BuildURL == "" {
		return "locally"
	}
	return fmt.Sprintf("by `%s %s <%s>`_", b.JobName, b.BuildNumber, b.BuildURL)
}

// PoliciesRst renders the table of every policy across every account, with the
// accounts and regions it is deployed to. Policies deployed everywhere leave the
// account column empty.
func PoliciesRst(doc *config.Document, accountPolicies map[string]map[string]policy.Set, info BuildInfo, now time.Time) string {
	header := fmt.Sprintf("this page built %s from `%s <%s>`_ at %s\n\n",
		info.describe(), info.GitCommit, info.GitHTMLURL, now.Format(rstTimeFormat))
	return header + gridTable(
		[]string{"Policy Name", "Account(s) / Region(s)", "Description/Comment"},
		policyRows(doc, accountPolicies),
	) + "\n"
}

func policyRows(doc *config.Document, accountPolicies map[string]map[string]policy.Set) [][]string {
	acctNames := doc.ListAccounts()
	sort.Strings(acctNames)

	// account -> policy -> regions
	deployed := map[string]map[string][]string{}
	descriptions := map[string]string{}
	for _, acct := range acctNames {
		deployed[acct] = map[string][]string{}
		regions := make([]string, 0, len(accountPolicies[acct]))
		for region := range accountPolicies[acct] {
			regions = append(regions, region)
		}
		sort.Strings(regions)
		for _, region := range regions {
			for _, p := range accountPolicies[acct][region].Sorted() {
				name := p.Name()
				deployed[acct][name] = append(deployed[acct][name], region)
				descriptions[name] = p.Comment()
			}
		}
	}

	names := make([]string, 0, len(descriptions))
	for name := range descriptions {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		accts := []string{}
		for _, acct := range acctNames {
			regions := deployed[acct][name]
			if len(regions) == 0 {
				continue
			}
			all, _ := doc.Account(acct)
			acctRegions := append([]string{}, all.Regions...)
			sort.Strings(acctRegions)
			if stringz.SliceEqual(regions, acctRegions) {
				accts = append(accts, acct)
				continue
			}
			accts = append(accts, fmt.Sprintf("%s (%s)", acct, strings.Join(regions, " ")))
		}
		where := strings.Join(accts, " ")
		if stringz.SliceEqual(accts, acctNames) {
			where = ""
		}
		rows = append(rows, []string{name, where, descriptions[name]})
	}
	return rows
}

// RegionsRst renders a nested bullet list of accounts and their regions.
func RegionsRst(doc *config.Document) string {
	var b strings.Builder
	for _, acct := range doc.Accounts {
		fmt.Fprintf(&b, "  * %s (%s)\n\n", acct.AccountName, acct.AccountID)
		for _, region := range acct.Regions {
			fmt.Fprintf(&b, "    * %s\n", region)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// gridTable renders an rST grid table. Multi-line cells are split on newlines.
func gridTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	measure := func(cells []string) {
		for i, cell := range cells {
			for _, line := range strings.Split(cell, "\n") {
				if w := runewidth.StringWidth(line); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}

	rule := func(fill string) string {
		var b strings.Builder
		b.WriteString("+")
		for _, w := range widths {
			b.WriteString(strings.Repeat(fill, w+2))
			b.WriteString("+")
		}
		b.WriteString("\n")
		return b.String()
	}
	line := func(cells []string) string {
		split := make([][]string, len(cells))
		height := 1
		for i, cell := range cells {
			split[i] = strings.Split(cell, "\n")
			if len(split[i]) > height {
				height = len(split[i])
			}
		}
		var b strings.Builder
		for l := 0; l < height; l++ {
			b.WriteString("|")
			for i := range cells {
				text := ""
				if l < len(split[i]) {
					text = split[i][l]
				}
				b.WriteString(" ")
				b.WriteString(runewidth.FillRight(text, widths[i]))
				b.WriteString(" |")
			}
			b.WriteString("\n")
		}
		return b.String()
	}

	var b strings.Builder
	b.WriteString(rule("-"))
	b.WriteString(line(headers))
	b.WriteString(rule("="))
	for i, row := range rows {
		b.WriteString(line(row))
		if i < len(rows)-1 {
			b.WriteString(rule("-"))
		}
	}
	if len(rows) > 0 {
		b.WriteString(rule("-"))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
