package branch

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/vilaca/branchsmith/internal/domain"
)

// Validation messages, reported in this order.
const (
	MsgTooLong           = "too long"
	MsgTooShort          = "too short"
	MsgInvalidCharacters = "invalid characters"
	MsgHyphenEdge        = "cannot start/end with hyphen"
	MsgConsecutive       = "cannot contain consecutive slash or hyphen"
	MsgSlashEdge         = "cannot start/end with slash"
)

// MinBranchLength is the shortest acceptable branch name.
const MinBranchLength = 3

var refChars = regexp.MustCompile(`^[a-zA-Z0-9/_-]+$`)

// Validation is the outcome of checking a branch name.
type Validation struct {
	IsValid bool     `json:"isValid" yaml:"isValid"`
	Errors  []string `json:"errors" yaml:"errors"`
}

// Err returns nil for a valid name, otherwise an error wrapping
// domain.ErrInvalidBranchName that lists every violation.
func (v Validation) Err() error {
	if v.IsValid {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidBranchName, strings.Join(v.Errors, "; "))
}

// Validate checks name against the branch naming rules. Every rule is
// evaluated so all violations are reported together; nothing is corrected.
func Validate(name string) Validation {
	errs := []string{}
	length := utf8.RuneCountInString(name)

	if length > MaxBranchLength {
		errs = append(errs, MsgTooLong)
	}
	if length < MinBranchLength {
		errs = append(errs, MsgTooShort)
	}
	if !refChars.MatchString(name) {
		errs = append(errs, MsgInvalidCharacters)
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		errs = append(errs, MsgHyphenEdge)
	}
	if strings.Contains(name, "//") || strings.Contains(name, "--") {
		errs = append(errs, MsgConsecutive)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		errs = append(errs, MsgSlashEdge)
	}

	return Validation{IsValid: len(errs) == 0, Errors: errs}
}
