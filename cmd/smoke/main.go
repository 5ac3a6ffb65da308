package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"auditdesk.org/internal/admin"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/client"
	"auditdesk.org/internal/httpapi"
	"auditdesk.org/internal/ids"
	"auditdesk.org/internal/obs"
)

func main() {
	log := obs.Logger()
	var (
		baseURL  = flag.String("url", envOr("AUDITDESK_URL", "http://localhost:8080"), "API base URL")
		grpcAddr = flag.String("grpc", envOr("AUDITDESK_GRPC_ADDR", "localhost:9090"), "gRPC health address")
	)
	flag.Parse()

	ctx, cancel := client.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.CheckHealth(ctx, *grpcAddr, httpapi.HealthService); err != nil {
		log.WithError(err).Fatal("health check")
	}

	// Names are unique per run so the smoke test can target a live server.
	suffix := strings.ToLower(ids.New()[18:])
	a1Name, e1Name := "a"+suffix, "e"+suffix
	c := client.New(*baseURL)

	if _, err := c.Signup(ctx, admin.RegisterInput{Username: a1Name, Email: a1Name + "@x.com", Password: "secret1", Role: "Admin"}); err != nil {
		log.WithError(err).Fatal("signup admin")
	}
	sess, err := c.Signin(ctx, a1Name, "secret1")
	if err != nil {
		log.WithError(err).Fatal("signin admin")
	}
	a1 := c.As(sess.AccessToken)

	e1, err := a1.Register(ctx, admin.RegisterInput{Username: e1Name, Email: e1Name + "@x.com", Password: "secret1", Role: "Employee"})
	if err != nil {
		log.WithError(err).Fatal("register employee")
	}
	e1Sess, err := c.Signin(ctx, e1Name, "secret1")
	if err != nil {
		log.WithError(err).Fatal("signin employee")
	}
	e1c := c.As(e1Sess.AccessToken)

	if _, err := e1c.ListUsers(ctx); !errors.Is(err, client.ErrForbidden) {
		log.WithError(err).Fatal("employee listing users: expected forbidden")
	}
	if _, err := a1.AssignRole(ctx, e1.ID, auth.RoleManager); err != nil {
		log.WithError(err).Fatal("assign role")
	}
	users, err := e1c.ListUsers(ctx)
	if err != nil {
		log.WithError(err).Fatal("manager listing users")
	}
	if !containsUser(users, e1.ID) {
		log.Fatalf("user list is missing %s", e1Name)
	}

	p, err := a1.CreateProject(ctx, admin.CreateProjectInput{Name: "P1 " + suffix, AssignedTo: []string{e1.ID}})
	if err != nil {
		log.WithError(err).Fatal("create project")
	}
	got, err := a1.GetProject(ctx, p.ID)
	if err != nil {
		log.WithError(err).Fatal("get project")
	}
	if got.Creator == nil || got.Creator.ID != sess.User.ID {
		log.Fatalf("unexpected creator %+v", got.Creator)
	}
	if len(got.AssignedUsers) != 1 || got.AssignedUsers[0].ID != e1.ID {
		log.Fatalf("unexpected assigned users %+v", got.AssignedUsers)
	}
	if err := a1.DeleteProject(ctx, p.ID); err != nil {
		log.WithError(err).Fatal("soft delete project")
	}
	if _, err := a1.GetProject(ctx, p.ID); !errors.Is(err, client.ErrNotFound) {
		log.WithError(err).Fatal("get deleted project: expected not found")
	}
	if err := a1.RestoreProject(ctx, p.ID); err != nil {
		log.WithError(err).Fatal("restore project")
	}
	if _, err := a1.GetProject(ctx, p.ID); err != nil {
		log.WithError(err).Fatal("get restored project")
	}

	fmt.Printf("smoke test passed: admin=%s employee=%s project=%s\n", a1Name, e1Name, p.ID)
}

func containsUser(users []auth.PublicUser, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
