package branch

import "fmt"

// CheckoutCommand returns a one-line shell command that switches to
// branchName if it exists locally, tracks it if only origin has it, and
// otherwise creates it from origin/baseBranch and pushes it.
func CheckoutCommand(branchName, baseBranch string) string {
	if baseBranch == "" {
		baseBranch = "main"
	}
	return fmt.Sprintf(
		"git fetch origin && (git checkout %[1]s 2>/dev/null || "+
			"(git show-ref --verify --quiet refs/remotes/origin/%[1]s && git checkout -b %[1]s origin/%[1]s || "+
			"(git checkout -b %[1]s origin/%[2]s && git push -u origin %[1]s)))",
		branchName, baseBranch)
}
