package services

import (
	"fmt"
	"time"

	"github.com/result-system/apiserver/types"
)

const (
	studentUsernameBase = 1000
	staffUsernameBase   = 10000
)

// Semester names the four-month term containing t as "{year}-{term}",
// with terms numbered 1 to 3.
func Semester(t time.Time) string {
	term := (int(t.Month()) + 3) / 4 % 12
	return fmt.Sprintf("%d-%d", t.Year(), term)
}

// GenerateUsername derives the login name of a new account from its role and
// the number of users that already exist. Students are numbered per semester
// ("2024-3-1005"), everyone else by role initial ("T-10005").
func GenerateUsername(role types.Role, count int, now time.Time) string {
	if role == types.RoleStudent {
		return fmt.Sprintf("%s-%d", Semester(now), studentUsernameBase+count)
	}
	return fmt.Sprintf("%s-%d", string(role)[:1], staffUsernameBase+count)
}
