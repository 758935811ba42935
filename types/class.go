package types

import "time"

// ClassRoom is a class that groups students under a teacher.
type ClassRoom struct {
	// ID is the unique identifier of the class.
	ID string `json:"id" db:"id"`

	// Name is the unique display name of the class.
	Name string `json:"name" db:"name"`

	// TeacherID references the TEACHER assigned to the class, if any.
	// A teacher with an assigned class cannot be deleted.
	TeacherID *string `json:"teacherId" db:"teacher_id"`

	// CreatedAt is the timestamp at which the class was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the class.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// PageInfo describes offset pagination state of a list response.
type PageInfo struct {
	HasNext      bool `json:"hasNext"`
	NextPage     int  `json:"nextPage"`
	PreviousPage int  `json:"previousPage"`
	TotalPages   int  `json:"totalPages"`
}
