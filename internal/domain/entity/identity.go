package entity

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// The verified caller handed over by the identity service.
type Identity struct {
	Id   string
	Name string
	Role Role
}

func (i Identity) IsTeacher() bool { return i.Role == RoleTeacher }
