package admin

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"auditdesk.org/internal/auth"
)

var roleRule = validation.In(string(auth.RoleAdmin), string(auth.RoleManager), string(auth.RoleEmployee)).
	Error("must be one of Admin, Manager, Employee")

// RegisterInput is the payload of both registration entry points.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r RegisterInput) normalized() RegisterInput {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.Role = strings.TrimSpace(r.Role)
	return r
}

func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(2, 30)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 0)),
		validation.Field(&r.Role, validation.Required, roleRule),
	)
}

// SigninInput identifies a user by username or email.
type SigninInput struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

func (r SigninInput) normalized() SigninInput {
	r.UsernameOrEmail = strings.TrimSpace(r.UsernameOrEmail)
	return r
}

func (r SigninInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UsernameOrEmail, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 0)),
	)
}

// UpdateUserInput changes profile fields; empty values keep the stored ones.
type UpdateUserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (r UpdateUserInput) normalized() UpdateUserInput {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.Role = strings.TrimSpace(r.Role)
	return r
}

func (r UpdateUserInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(2, 30)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Role, roleRule),
	)
}

// RoleInput is the assign-role payload.
type RoleInput struct {
	Role string `json:"role"`
}

func (r RoleInput) normalized() RoleInput {
	r.Role = strings.TrimSpace(r.Role)
	return r
}

func (r RoleInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, roleRule),
	)
}

// CreateProjectInput creates a project and its initial assignments.
type CreateProjectInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AssignedTo  []string `json:"assignedTo"`
}

func (r CreateProjectInput) normalized() CreateProjectInput {
	r.Name = strings.TrimSpace(r.Name)
	return r
}

func (r CreateProjectInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 0)),
		validation.Field(&r.AssignedTo, validation.By(uuidList)),
	)
}

// UpdateProjectInput changes a project. Empty values keep the stored ones;
// a non-empty AssignedTo replaces every assignment.
type UpdateProjectInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AssignedTo  []string `json:"assignedTo"`
}

func (r UpdateProjectInput) normalized() UpdateProjectInput {
	r.Name = strings.TrimSpace(r.Name)
	return r
}

func (r UpdateProjectInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(2, 0)),
		validation.Field(&r.AssignedTo, validation.By(uuidList)),
	)
}

var errUUIDList = errors.New("must contain only user UUIDs")

// uuidList checks every element; string rules alone would let "" through.
func uuidList(value interface{}) error {
	ids, _ := value.([]string)
	for _, id := range ids {
		if id == "" || is.UUID.Validate(id) != nil {
			return errUUIDList
		}
	}
	return nil
}
