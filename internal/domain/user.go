package domain

import "time"

// UserRole enumerates plant personnel roles.
type UserRole string

const (
	RoleWorker           UserRole = "worker"
	RoleTechnician       UserRole = "technician"
	RoleTechnicianLeader UserRole = "technician_leader"
	RoleWorkersLeader    UserRole = "workers_leader"
	RoleAdmin            UserRole = "admin"
)

// User models any authenticated plant member.
type User struct {
	ID           string
	Username     string
	EmployeeID   string
	PasswordHash string
	Role         UserRole
	Sector       *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Technician reports whether the user can be put on a report team.
func (u *User) Technician() bool {
	return u.Role == RoleTechnician || u.Role == RoleTechnicianLeader
}

// LeaderCapable reports whether the user may hold the leader team role.
func (u *User) LeaderCapable() bool {
	return u.Role == RoleTechnicianLeader
}
