package team

import "time"

// Team is a manager's group of Redmine users. ManagerId and MemberIds are
// Redmine user ids.
type Team struct {
	Id        int
	ManagerId int
	Name      string
	CreatedAt time.Time
	MemberIds []int
}
