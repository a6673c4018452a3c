// Package branch derives Git branch names from tasks.
//
// A task is classified into a branch category (feature, bugfix, hotfix,
// refactor, docs), its title and target service are reduced to ASCII slugs,
// and the category's template renders them into a name such as
//
//	feature/auth-service-user-login-feature-123456
//
// Validate checks any branch name, generated or typed by hand, against the
// ref-name rules the generator itself guarantees.
//
// Everything here is pure and safe for concurrent use. The only
// non-determinism is the clock-based id suffix used when a request carries no
// task id.
package branch
