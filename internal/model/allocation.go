package model

import "time"

// Allocation assigns a guide teacher to a student. One per student.
type Allocation struct {
	StudentID  string    `json:"student_id"`
	TeacherID  string    `json:"teacher_id"`
	AssignedBy string    `json:"assigned_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
