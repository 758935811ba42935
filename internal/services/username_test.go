package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/result-system/apiserver/types"
)

func TestSemester(t *testing.T) {
	cases := map[time.Month]string{
		time.January:   "2024-1",
		time.April:     "2024-1",
		time.May:       "2024-2",
		time.August:    "2024-2",
		time.September: "2024-3",
		time.December:  "2024-3",
	}
	for month, want := range cases {
		got := Semester(time.Date(2024, month, 15, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, want, got, month.String())
	}
}

func TestGenerateUsername(t *testing.T) {
	december := time.Date(2024, time.December, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-3-1005", GenerateUsername(types.RoleStudent, 5, december))
	assert.Equal(t, "T-10005", GenerateUsername(types.RoleTeacher, 5, december))
	assert.Equal(t, "A-10000", GenerateUsername(types.RoleAdmin, 0, december))
}
