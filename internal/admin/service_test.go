package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditdesk.org/internal/audit"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/ids"
	"auditdesk.org/internal/store"
	"auditdesk.org/internal/store/memory"
)

type fixture struct {
	ctx    context.Context
	st     *memory.Store
	tokens *auth.TokenService
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	tokens, err := auth.NewTokenService(auth.WithAccessSecret("access-secret"), auth.WithRefreshSecret("refresh-secret"))
	require.NoError(t, err)
	svc, err := NewService(st, tokens, WithHasher(auth.NewHasher(4)))
	require.NoError(t, err)
	return &fixture{ctx: context.Background(), st: st, tokens: tokens, svc: svc}
}

func (f *fixture) records(t *testing.T) []*audit.Record {
	t.Helper()
	recs, err := f.st.Audit().List(f.ctx, 0, 0)
	require.NoError(t, err)
	return recs
}

// bootstrap signs up and signs in the admin a1.
func (f *fixture) bootstrap(t *testing.T) auth.Principal {
	t.Helper()
	_, err := f.svc.Signup(f.ctx, RegisterInput{Username: "a1", Email: "a1@x.com", Password: "secret1", Role: "Admin"})
	require.NoError(t, err)
	sess, err := f.svc.Signin(f.ctx, SigninInput{UsernameOrEmail: "a1", Password: "secret1"})
	require.NoError(t, err)
	return auth.Principal{ID: sess.User.ID, Username: sess.User.Username, Email: sess.User.Email, Role: sess.User.Role}
}

func (f *fixture) register(t *testing.T, admin auth.Principal, name string, role auth.Role) auth.PublicUser {
	t.Helper()
	u, err := f.svc.Register(f.ctx, admin, RegisterInput{Username: name, Email: name + "@x.com", Password: "secret1", Role: string(role)})
	require.NoError(t, err)
	return u
}

func principalOf(u auth.PublicUser) auth.Principal {
	return auth.Principal{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func TestScenarioAssignRoleThenListUsers(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	e1 := f.register(t, a1, "e1", auth.RoleEmployee)

	promoted, err := f.svc.AssignRole(f.ctx, a1, e1.ID, RoleInput{Role: "Manager"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleManager, promoted.Role)

	e1Principal := principalOf(promoted)
	require.NoError(t, auth.Authorize(e1Principal, auth.RoleAdmin, auth.RoleManager))

	users, err := f.svc.ListUsers(f.ctx, e1Principal)
	require.NoError(t, err)
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"a1", "e1"}, names)

	recs := f.records(t)
	require.NotEmpty(t, recs)
	assert.Equal(t, audit.ActionFetchAllUsers, recs[0].Action)
	assert.Equal(t, e1.ID, recs[0].PerformedBy)
	assert.Equal(t, e1.ID, recs[0].TargetResource)
}

func TestScenarioProjectSoftDeleteAndRestore(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	e1 := f.register(t, a1, "e1", auth.RoleEmployee)

	created, err := f.svc.CreateProject(f.ctx, a1, CreateProjectInput{Name: "P1", AssignedTo: []string{e1.ID}})
	require.NoError(t, err)

	got, err := f.svc.GetProject(f.ctx, a1, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Creator)
	assert.Equal(t, a1.ID, got.Creator.ID)
	assert.Equal(t, "a1", got.Creator.Username)
	require.Len(t, got.AssignedUsers, 1)
	assert.Equal(t, e1.ID, got.AssignedUsers[0].ID)
	assert.Equal(t, auth.RoleEmployee, got.AssignedUsers[0].Role)

	deleted, err := f.svc.SoftDeleteProject(f.ctx, a1, created.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)

	_, err = f.svc.GetProject(f.ctx, a1, created.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, "Project not found", err.Error())

	restored, err := f.svc.RestoreProject(f.ctx, a1, created.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	again, err := f.svc.GetProject(f.ctx, a1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Name, again.Name)
	assert.Equal(t, got.AssignedUsers, again.AssignedUsers)
}

func TestEveryMutationRecordsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)

	before := len(f.records(t))
	e1 := f.register(t, a1, "e1", auth.RoleEmployee)
	recs := f.records(t)
	require.Len(t, recs, before+1)
	assert.Equal(t, audit.ActionRegisterUser, recs[0].Action)
	assert.Equal(t, a1.ID, recs[0].PerformedBy)
	assert.Equal(t, e1.ID, recs[0].TargetResource)

	steps := []struct {
		action audit.Action
		run    func() error
	}{
		{audit.ActionUpdateUserDetails, func() error {
			_, err := f.svc.UpdateUser(f.ctx, a1, e1.ID, UpdateUserInput{Username: "e1-renamed"})
			return err
		}},
		{audit.ActionAssignRole, func() error {
			_, err := f.svc.AssignRole(f.ctx, a1, e1.ID, RoleInput{Role: "Manager"})
			return err
		}},
		{audit.ActionRevokeRole, func() error {
			_, err := f.svc.RevokeRole(f.ctx, a1, e1.ID)
			return err
		}},
		{audit.ActionSoftDeleteUser, func() error {
			_, err := f.svc.SoftDeleteUser(f.ctx, a1, e1.ID)
			return err
		}},
		{audit.ActionRestoreUser, func() error {
			_, err := f.svc.RestoreUser(f.ctx, a1, e1.ID)
			return err
		}},
		{audit.ActionPermanentDeleteUser, func() error {
			_, err := f.svc.PermanentlyDeleteUser(f.ctx, a1, e1.ID)
			return err
		}},
	}
	for _, step := range steps {
		n := len(f.records(t))
		require.NoError(t, step.run(), step.action)
		recs := f.records(t)
		require.Len(t, recs, n+1, step.action)
		assert.Equal(t, step.action, recs[0].Action)
		assert.Equal(t, a1.ID, recs[0].PerformedBy)
		assert.Equal(t, e1.ID, recs[0].TargetResource)
	}
}

func TestFailedMutationsRecordNothing(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	f.register(t, a1, "e1", auth.RoleEmployee)
	n := len(f.records(t))

	_, err := f.svc.Register(f.ctx, a1, RegisterInput{Username: "e2", Email: "E1@x.com", Password: "secret1", Role: "Employee"})
	require.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, "User with this email already exists", err.Error())

	_, err = f.svc.SoftDeleteUser(f.ctx, a1, ids.NewUUID())
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.AssignRole(f.ctx, a1, "not-a-uuid", RoleInput{Role: "Manager"})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.CreateProject(f.ctx, a1, CreateProjectInput{Name: "P1", AssignedTo: []string{ids.NewUUID()}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "assignedTo")

	assert.Len(t, f.records(t), n)
}

func TestAuditFailureRollsBackMutation(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	e1 := f.register(t, a1, "e1", auth.RoleEmployee)
	n := len(f.records(t))

	f.st.SetAppendHook(func(*audit.Record) error { return errors.New("audit table unavailable") })
	_, err := f.svc.SoftDeleteUser(f.ctx, a1, e1.ID)
	require.ErrorIs(t, err, audit.ErrWriteFailure)

	_, err = f.svc.CreateProject(f.ctx, a1, CreateProjectInput{Name: "P1"})
	require.ErrorIs(t, err, audit.ErrWriteFailure)
	f.st.SetAppendHook(nil)

	got, err := f.svc.GetUser(f.ctx, a1, e1.ID)
	require.NoError(t, err, "soft delete must have been rolled back")
	assert.Nil(t, got.DeletedAt)

	projects, err := f.svc.ListProjects(f.ctx, a1)
	require.NoError(t, err)
	assert.Empty(t, projects)

	// only the two reads above were recorded
	assert.Len(t, f.records(t), n+2)
}

func TestReadSucceedsWhenAuditFails(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	n := len(f.records(t))

	f.st.SetAppendHook(func(*audit.Record) error { return errors.New("audit table unavailable") })
	defer f.st.SetAppendHook(nil)

	users, err := f.svc.ListUsers(f.ctx, a1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	me, err := f.svc.CurrentUser(f.ctx, a1)
	require.NoError(t, err)
	assert.Equal(t, a1.ID, me.ID)
	assert.Len(t, f.records(t), n)
}

func TestEmptyListIsSuccess(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)

	projects, err := f.svc.ListProjects(f.ctx, a1)
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)

	recs := f.records(t)
	assert.Equal(t, audit.ActionFetchAllProjects, recs[0].Action)
	assert.Equal(t, a1.ID, recs[0].TargetResource)
}

func TestRestoreActiveUserIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	e1 := f.register(t, a1, "e1", auth.RoleEmployee)
	n := len(f.records(t))

	got, err := f.svc.RestoreUser(f.ctx, a1, e1.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)
	assert.Equal(t, e1.Username, got.Username)

	recs := f.records(t)
	require.Len(t, recs, n+1)
	assert.Equal(t, audit.ActionRestoreUser, recs[0].Action)
}

func TestSoftDeleteTwiceIsNotFound(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	e1 := f.register(t, a1, "e1", auth.RoleEmployee)

	_, err := f.svc.SoftDeleteUser(f.ctx, a1, e1.ID)
	require.NoError(t, err)
	_, err = f.svc.SoftDeleteUser(f.ctx, a1, e1.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPermanentDeleteIsIrreversible(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	e1 := f.register(t, a1, "e1", auth.RoleEmployee)

	_, err := f.svc.SoftDeleteUser(f.ctx, a1, e1.ID)
	require.NoError(t, err)
	purged, err := f.svc.PermanentlyDeleteUser(f.ctx, a1, e1.ID)
	require.NoError(t, err)
	assert.Equal(t, e1.ID, purged.ID)

	_, err = f.svc.GetUser(f.ctx, a1, e1.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.svc.RestoreUser(f.ctx, a1, e1.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.svc.PermanentlyDeleteUser(f.ctx, a1, e1.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// the trail still names the purged user
	found := false
	for _, rec := range f.records(t) {
		if rec.Action == audit.ActionPermanentDeleteUser && rec.TargetResource == e1.ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestProjectCreatorGoneLeavesNilCreator(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	a2, err := f.svc.Signup(f.ctx, RegisterInput{Username: "a2", Email: "a2@x.com", Password: "secret1", Role: "Admin"})
	require.NoError(t, err)

	p, err := f.svc.CreateProject(f.ctx, principalOf(a2), CreateProjectInput{Name: "Orphan"})
	require.NoError(t, err)
	_, err = f.svc.PermanentlyDeleteUser(f.ctx, a1, a2.ID)
	require.NoError(t, err)

	got, err := f.svc.GetProject(f.ctx, a1, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Creator)
	assert.Equal(t, a2.ID, got.CreatedBy)
}

func TestUpdateProjectReplacesAssignmentsOnlyWhenGiven(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	e1 := f.register(t, a1, "e1", auth.RoleEmployee)
	e2 := f.register(t, a1, "e2", auth.RoleEmployee)

	p, err := f.svc.CreateProject(f.ctx, a1, CreateProjectInput{Name: "P1", Description: "first", AssignedTo: []string{e1.ID}})
	require.NoError(t, err)

	updated, err := f.svc.UpdateProject(f.ctx, a1, p.ID, UpdateProjectInput{Name: "P1b", Description: ""})
	require.NoError(t, err)
	assert.Equal(t, "P1b", updated.Name)
	assert.Equal(t, "first", updated.Description)
	require.Len(t, updated.AssignedUsers, 1)
	assert.Equal(t, e1.ID, updated.AssignedUsers[0].ID)

	updated, err = f.svc.UpdateProject(f.ctx, a1, p.ID, UpdateProjectInput{AssignedTo: []string{e2.ID}})
	require.NoError(t, err)
	require.Len(t, updated.AssignedUsers, 1)
	assert.Equal(t, e2.ID, updated.AssignedUsers[0].ID)
	assert.Equal(t, "P1b", updated.Name)
}

func TestRegistrationEntryPointsGuardAdminRole(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Signup(f.ctx, RegisterInput{Username: "m1", Email: "m1@x.com", Password: "secret1", Role: "Manager"})
	require.ErrorIs(t, err, auth.ErrForbidden)
	assert.Equal(t, "Only 'Admin' role can be registered via this route", err.Error())

	a1 := f.bootstrap(t)
	_, err = f.svc.Register(f.ctx, a1, RegisterInput{Username: "a2", Email: "a2@x.com", Password: "secret1", Role: "Admin"})
	require.ErrorIs(t, err, auth.ErrForbidden)
	assert.Equal(t, "Admin can't be registered through this route", err.Error())
}

func TestValidationReportsFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Signup(f.ctx, RegisterInput{Username: "a", Email: "nope", Password: "123", Role: "Root"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"username", "email", "password", "role"} {
		assert.Contains(t, verr.Fields, field)
	}
	assert.Empty(t, f.records(t))

	_, err = f.svc.CreateProject(f.ctx, auth.Principal{ID: ids.NewUUID()}, CreateProjectInput{Name: "P", AssignedTo: []string{""}})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "assignedTo")
}

func TestInputIsTrimmedBeforeValidation(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	n := len(f.records(t))

	_, err := f.svc.Register(f.ctx, a1, RegisterInput{Username: "  b  ", Email: "b@x.com", Password: "secret1", Role: "Employee"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")

	_, err = f.svc.CreateProject(f.ctx, a1, CreateProjectInput{Name: "     "})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")

	_, err = f.svc.UpdateUser(f.ctx, a1, a1.ID, UpdateUserInput{Username: " c "})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
	assert.Len(t, f.records(t), n)

	u, err := f.svc.Register(f.ctx, a1, RegisterInput{Username: "  e1 ", Email: " e1@x.com ", Password: "secret1", Role: " Employee "})
	require.NoError(t, err)
	assert.Equal(t, "e1", u.Username)
	assert.Equal(t, "e1@x.com", u.Email)

	p, err := f.svc.CreateProject(f.ctx, a1, CreateProjectInput{Name: "  P1  "})
	require.NoError(t, err)
	assert.Equal(t, "P1", p.Name)
}

func TestSigninFailures(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)
	n := len(f.records(t))

	_, err := f.svc.Signin(f.ctx, SigninInput{UsernameOrEmail: "ghost", Password: "secret1"})
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, "User not found", err.Error())

	_, err = f.svc.Signin(f.ctx, SigninInput{UsernameOrEmail: "A1@X.com", Password: "wrong-pass"})
	require.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.Equal(t, "Invalid credentials", err.Error())

	assert.Len(t, f.records(t), n)
}

func TestRefreshRotatesAndSignoutRevokes(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)
	sess, err := f.svc.Signin(f.ctx, SigninInput{UsernameOrEmail: "a1@x.com", Password: "secret1"})
	require.NoError(t, err)

	next, err := f.svc.Refresh(f.ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Tokens.RefreshToken, next.Tokens.RefreshToken)
	assert.Equal(t, audit.ActionRefreshSession, f.records(t)[0].Action)

	_, err = f.svc.Refresh(f.ctx, sess.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrUnauthorized, "rotated token must not be reusable")

	_, err = f.svc.Refresh(f.ctx, next.Tokens.AccessToken)
	require.ErrorIs(t, err, auth.ErrUnauthorized, "access token is not a refresh token")

	require.NoError(t, f.svc.Signout(f.ctx, principalOf(next.User)))
	assert.Equal(t, audit.ActionSignoutUser, f.records(t)[0].Action)
	_, err = f.svc.Refresh(f.ctx, next.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	// access tokens outlive signout until they expire
	_, err = f.tokens.VerifyAccess(next.Tokens.AccessToken)
	require.NoError(t, err)
}

func TestResolverRejectsDeletedIdentity(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	e1 := f.register(t, a1, "e1", auth.RoleEmployee)
	sess, err := f.svc.Signin(f.ctx, SigninInput{UsernameOrEmail: "e1", Password: "secret1"})
	require.NoError(t, err)

	resolver := auth.NewResolver(f.tokens, f.svc)
	p, err := resolver.Resolve(f.ctx, sess.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, e1.ID, p.ID)

	_, err = f.svc.SoftDeleteUser(f.ctx, a1, e1.ID)
	require.NoError(t, err)
	_, err = resolver.Resolve(f.ctx, sess.Tokens.AccessToken)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.Equal(t, "Invalid access token: user not found", err.Error())
}

func TestRoleComesFromStoreNotToken(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	e1 := f.register(t, a1, "e1", auth.RoleEmployee)
	sess, err := f.svc.Signin(f.ctx, SigninInput{UsernameOrEmail: "e1", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.svc.AssignRole(f.ctx, a1, e1.ID, RoleInput{Role: "Manager"})
	require.NoError(t, err)

	p, err := auth.NewResolver(f.tokens, f.svc).Resolve(f.ctx, sess.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleManager, p.Role)
	assert.ErrorIs(t, auth.Authorize(p, auth.RoleAdmin), auth.ErrForbidden)
}

func TestAuditLogsAreNewestFirstAndUnrecorded(t *testing.T) {
	f := newFixture(t)
	a1 := f.bootstrap(t)
	n := len(f.records(t))

	logs, err := f.svc.AuditLogs(f.ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.ActionSigninUser, logs[0].Action)
	assert.Equal(t, a1.ID, logs[0].PerformedBy)
	assert.Len(t, f.records(t), n)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	tokens, err := auth.NewTokenService(auth.WithAccessSecret("a"), auth.WithRefreshSecret("b"))
	require.NoError(t, err)
	_, err = NewService(nil, tokens)
	assert.Error(t, err)
	_, err = NewService(memory.New(), nil)
	assert.Error(t, err)
	_, err = NewService(memory.New(), tokens, WithClock(nil))
	assert.Error(t, err)
}
