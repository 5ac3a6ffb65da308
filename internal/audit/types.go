package audit

import "time"

// Action is the closed set of operation names an audit record can carry.
type Action string

const (
	ActionRegisterAdmin          Action = "REGISTER_ADMIN"
	ActionSigninUser             Action = "SIGNIN_USER"
	ActionSignoutUser            Action = "SIGNOUT_USER"
	ActionRefreshSession         Action = "REFRESH_SESSION"
	ActionRegisterUser           Action = "REGISTER_USER"
	ActionFetchAllUsers          Action = "FETCH_ALL_USERS"
	ActionFetchUserByID          Action = "FETCH_USER_BY_ID"
	ActionFetchCurrentUser       Action = "FETCH_CURRENT_USER"
	ActionUpdateUserDetails      Action = "UPDATE_USER_DETAILS"
	ActionSoftDeleteUser         Action = "SOFT_DELETE_USER"
	ActionPermanentDeleteUser    Action = "PERMANENT_DELETE_USER"
	ActionRestoreUser            Action = "RESTORE_USER_DETAILS"
	ActionAssignRole             Action = "ASSIGN_ROLE"
	ActionRevokeRole             Action = "REVOKE_ROLE"
	ActionCreateProject          Action = "CREATE_PROJECT"
	ActionFetchAllProjects       Action = "FETCH_ALL_PROJECTS"
	ActionFetchProjectByID       Action = "FETCH_PROJECT_BY_ID"
	ActionUpdateProjectDetails   Action = "UPDATE_PROJECT_DETAILS"
	ActionSoftDeleteProject      Action = "SOFT_DELETE_PROJECT"
	ActionPermanentDeleteProject Action = "PERMANENT_DELETE_PROJECT"
	ActionRestoreProject         Action = "RESTORE_PROJECT"
)

var actions = map[Action]bool{
	ActionRegisterAdmin: true, ActionSigninUser: true, ActionSignoutUser: true,
	ActionRefreshSession: true, ActionRegisterUser: true, ActionFetchAllUsers: true,
	ActionFetchUserByID: true, ActionFetchCurrentUser: true, ActionUpdateUserDetails: true,
	ActionSoftDeleteUser: true, ActionPermanentDeleteUser: true, ActionRestoreUser: true,
	ActionAssignRole: true, ActionRevokeRole: true, ActionCreateProject: true,
	ActionFetchAllProjects: true, ActionFetchProjectByID: true, ActionUpdateProjectDetails: true,
	ActionSoftDeleteProject: true, ActionPermanentDeleteProject: true, ActionRestoreProject: true,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool { return actions[a] }

// Record is one append-only audit entry. PerformedBy and TargetResource
// are plain references: they may dangle once the actor or target is
// permanently deleted.
type Record struct {
	ID             string     `json:"id"`
	Action         Action     `json:"action"`
	PerformedBy    string     `json:"performedBy"`
	PerformedAt    time.Time  `json:"performedAt"`
	TargetResource string     `json:"targetResource"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}
