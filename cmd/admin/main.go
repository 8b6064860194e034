// Package main is the operator CLI for out-of-band administrative tasks
// that have no HTTP surface: bootstrapping users and households outside
// the onboarding flow, issuing long-lived tokens, and forcing a password
// reset or session revocation. Each subcommand gets its own flag.FlagSet.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lavente-household/authcore/internal/auth"
	"github.com/lavente-household/authcore/internal/config"
	"github.com/lavente-household/authcore/internal/storage"
	"github.com/lavente-household/authcore/internal/storage/db"
)

func flagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func requireFlags(fs *flag.FlagSet, msg string) {
	fmt.Println("Error:", msg)
	fs.PrintDefaults()
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands:")
		fmt.Println("  create-user      Create a user directly (bypasses onboarding gate)")
		fmt.Println("  create-household Create a household")
		fmt.Println("  add-member       Add a user to a household")
		fmt.Println("  issue-llt        Issue a long-lived access token for a user")
		fmt.Println("  revoke-session   Revoke a user's token family by its root jti")
		fmt.Println("  reset-password   Force-set a user's password")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create-user":
		createUserCmd()
	case "create-household":
		createHouseholdCmd()
	case "add-member":
		addMemberCmd()
	case "issue-llt":
		issueLLTCmd()
	case "revoke-session":
		revokeSessionCmd()
	case "reset-password":
		resetPasswordCmd()
	default:
		log.Fatalf("Unknown command: %s", os.Args[1])
	}
}

func connect() (*pgxpool.Pool, *db.Queries, func()) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}
	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	return pool, db.New(pool), pool.Close
}

func createUserCmd() {
	fs := flagSet("create-user")
	username := fs.String("username", "", "Username")
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address for security alerts (optional)")
	password := fs.String("password", "", "Password")
	admin := fs.Bool("admin", false, "Grant server-admin bypass")
	fs.Parse(os.Args[2:])

	if *username == "" || *password == "" {
		requireFlags(fs, "--username and --password are required")
	}

	_, queries, closeFn := connect()
	defer closeFn()

	hasher := auth.NewBcryptHasher()
	hash, err := hasher.Hash(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user, err := queries.CreateUser(context.Background(), db.CreateUserParams{
		ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Username:     *username,
		PasswordHash: hash,
		Name:         *name,
		Email:        pgtype.Text{String: *email, Valid: *email != ""},
		Admin:        *admin,
	})
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	id, _ := uuid.FromBytes(user.ID.Bytes[:])
	fmt.Printf("User created: id=%s username=%s admin=%v\n", id, user.Username, user.Admin)
}

func createHouseholdCmd() {
	fs := flagSet("create-household")
	name := fs.String("name", "", "Household name")
	fs.Parse(os.Args[2:])

	if *name == "" {
		requireFlags(fs, "--name is required")
	}

	_, queries, closeFn := connect()
	defer closeFn()

	h, err := queries.CreateHousehold(context.Background(), db.CreateHouseholdParams{
		ID:   pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Name: *name,
	})
	if err != nil {
		log.Fatalf("Failed to create household: %v", err)
	}

	id, _ := uuid.FromBytes(h.ID.Bytes[:])
	fmt.Printf("Household created: id=%s name=%s\n", id, h.Name)
}

func addMemberCmd() {
	fs := flagSet("add-member")
	household := fs.String("household", "", "Household ID (UUID)")
	user := fs.String("user", "", "User ID (UUID)")
	owner := fs.Bool("owner", false, "Grant owner role")
	adminRole := fs.Bool("admin", false, "Grant household-admin role")
	fs.Parse(os.Args[2:])

	if *household == "" || *user == "" {
		requireFlags(fs, "--household and --user are required")
	}

	householdID, err := uuid.Parse(*household)
	if err != nil {
		log.Fatalf("Invalid household ID: %v", err)
	}
	userID, err := uuid.Parse(*user)
	if err != nil {
		log.Fatalf("Invalid user ID: %v", err)
	}

	_, queries, closeFn := connect()
	defer closeFn()

	_, err = queries.AddHouseholdMember(context.Background(), db.AddHouseholdMemberParams{
		HouseholdID: pgtype.UUID{Bytes: householdID, Valid: true},
		UserID:      pgtype.UUID{Bytes: userID, Valid: true},
		Owner:       *owner,
		Admin:       *adminRole,
	})
	if err != nil {
		log.Fatalf("Failed to add member: %v", err)
	}

	fmt.Printf("Membership added: household=%s user=%s owner=%v admin=%v\n", householdID, userID, *owner, *adminRole)
}

func issueLLTCmd() {
	fs := flagSet("issue-llt")
	user := fs.String("user", "", "User ID (UUID)")
	name := fs.String("name", "", "Label for this token (shown in session listings)")
	fs.Parse(os.Args[2:])

	if *user == "" || *name == "" {
		requireFlags(fs, "--user and --name are required")
	}

	userID, err := uuid.Parse(*user)
	if err != nil {
		log.Fatalf("Invalid user ID: %v", err)
	}

	tfm := newManager()
	token, err := tfm.IssueLongLived(context.Background(), userID, *name)
	if err != nil {
		log.Fatalf("Failed to issue long-lived token: %v", err)
	}

	fmt.Println("Long-lived token issued (it will not be shown again):")
	fmt.Println(token)
}

func revokeSessionCmd() {
	fs := flagSet("revoke-session")
	user := fs.String("user", "", "User ID (UUID)")
	jti := fs.String("jti", "", "Root refresh token jti (UUID)")
	fs.Parse(os.Args[2:])

	if *user == "" || *jti == "" {
		requireFlags(fs, "--user and --jti are required")
	}

	userID, err := uuid.Parse(*user)
	if err != nil {
		log.Fatalf("Invalid user ID: %v", err)
	}
	rootJTI, err := uuid.Parse(*jti)
	if err != nil {
		log.Fatalf("Invalid jti: %v", err)
	}

	tfm := newManager()
	if err := tfm.RevokeSession(context.Background(), userID, rootJTI); err != nil {
		log.Fatalf("Failed to revoke session: %v", err)
	}

	fmt.Printf("Session revoked: user=%s jti=%s\n", userID, rootJTI)
}

func resetPasswordCmd() {
	fs := flagSet("reset-password")
	username := fs.String("username", "", "Username")
	password := fs.String("password", "", "New password")
	fs.Parse(os.Args[2:])

	if *username == "" || *password == "" {
		requireFlags(fs, "--username and --password are required")
	}

	pool, queries, closeFn := connect()
	defer closeFn()

	user, err := queries.GetUserByUsername(context.Background(), *username)
	if err != nil {
		log.Fatalf("User not found: %v", err)
	}

	hasher := auth.NewBcryptHasher()
	hash, err := hasher.Hash(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	// No generated query covers this single-column update; Exec directly.
	cmdTag, err := pool.Exec(context.Background(),
		"UPDATE users SET password_hash = $1 WHERE id = $2", hash, user.ID)
	if err != nil {
		log.Fatalf("Failed to reset password: %v", err)
	}
	if cmdTag.RowsAffected() == 0 {
		log.Fatalf("No user updated for username: %s", *username)
	}

	fmt.Printf("Password reset for %s\n", *username)
}

// newManager builds a Token Family Manager with no background notifier —
// the admin CLI issues and revokes credentials directly, outside any HTTP
// request, so there is no asynq client already running to hand it.
func newManager() *auth.Manager {
	cfg := config.Load()
	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	queries := db.New(pool)
	signingKey, err := auth.ParsePrivateKeyPEM(cfg.JWTPrivateKeyPEM)
	if err != nil {
		log.Fatalf("Invalid JWT private key: %v", err)
	}
	codec := auth.NewCodec(signingKey, cfg.AccessTTL, cfg.RefreshTTL)
	hasher := auth.NewBcryptHasher()
	return auth.NewManager(pool, queries, codec, hasher, nil)
}
