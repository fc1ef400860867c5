package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ngampusin/identity/internal/apperror"
	"github.com/ngampusin/identity/internal/model"
	"github.com/ngampusin/identity/internal/repository"
)

// newTestDB returns a DB backed by a fresh in-memory database, destroyed
// when the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, name, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: "$2a$04$fakefakefakefakefakefakefakefakefakefakefakefakefake",
		Fakultas:     "Engineering",
	}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := createTestUser(t, db, "Ana", "ana@x.edu")

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
	if user.Role != model.RoleMember {
		t.Errorf("Create() role = %q, want default %q", user.Role, model.RoleMember)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "Ana", "ana@x.edu")

	dup := &model.User{Name: "Other", Email: "ana@x.edu", PasswordHash: "h"}
	err := db.Create(context.Background(), dup)
	if !errors.Is(err, apperror.ErrEmailTaken) {
		t.Fatalf("Create(duplicate email) error = %v, want ErrEmailTaken", err)
	}

	// The failed insert must not have added a record.
	_, total, err := db.List(context.Background(), repository.ListOptions{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 {
		t.Errorf("user count after failed create = %d, want 1", total)
	}
}

func TestFindByIDAndEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "Ana", "ana@x.edu")

	byID, err := db.FindByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if byID.Email != "ana@x.edu" {
		t.Errorf("FindByID().Email = %q, want %q", byID.Email, "ana@x.edu")
	}

	byEmail, err := db.FindByEmail(context.Background(), "ana@x.edu")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if byEmail.ID != created.ID {
		t.Errorf("FindByEmail().ID = %q, want %q", byEmail.ID, created.ID)
	}

	if _, err := db.FindByID(context.Background(), "missing"); !errors.Is(err, apperror.ErrUserNotFound) {
		t.Errorf("FindByID(missing) error = %v, want ErrUserNotFound", err)
	}
	if _, err := db.FindByEmail(context.Background(), "nobody@x.edu"); !errors.Is(err, apperror.ErrUserNotFound) {
		t.Errorf("FindByEmail(missing) error = %v, want ErrUserNotFound", err)
	}
}

func TestUpdateEmailConflict(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "Ana", "ana@x.edu")
	bob := createTestUser(t, db, "Bob", "bob@x.edu")

	bob.Email = "ana@x.edu"
	if err := db.Update(context.Background(), bob); !errors.Is(err, apperror.ErrEmailTaken) {
		t.Errorf("Update(conflicting email) error = %v, want ErrEmailTaken", err)
	}
}

func TestSetAndClearOTP(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "Ana", "ana@x.edu")
	ctx := context.Background()

	expiry := time.Now().Add(15 * time.Minute).UTC()
	if err := db.SetOTP(ctx, user.ID, "004217", expiry); err != nil {
		t.Fatalf("SetOTP() error = %v", err)
	}

	got, err := db.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.OTPCode != "004217" {
		t.Errorf("OTPCode = %q, want %q (leading zero preserved)", got.OTPCode, "004217")
	}
	if !got.HasActiveOTP() {
		t.Error("HasActiveOTP() = false after SetOTP")
	}

	// A second issuance overwrites the first.
	if err := db.SetOTP(ctx, user.ID, "999999", expiry.Add(time.Minute)); err != nil {
		t.Fatalf("SetOTP() error = %v", err)
	}
	got, _ = db.FindByID(ctx, user.ID)
	if got.OTPCode != "999999" {
		t.Errorf("OTPCode after reissue = %q, want %q", got.OTPCode, "999999")
	}

	if err := db.ClearOTP(ctx, user.ID); err != nil {
		t.Fatalf("ClearOTP() error = %v", err)
	}
	got, _ = db.FindByID(ctx, user.ID)
	if got.HasActiveOTP() {
		t.Error("HasActiveOTP() = true after ClearOTP")
	}

	// Both writers report a miss for unknown users.
	if err := db.SetOTP(ctx, "missing", "123456", expiry); !errors.Is(err, apperror.ErrUserNotFound) {
		t.Errorf("SetOTP(missing) error = %v, want ErrUserNotFound", err)
	}
	if err := db.ClearOTP(ctx, "missing"); !errors.Is(err, apperror.ErrUserNotFound) {
		t.Errorf("ClearOTP(missing) error = %v, want ErrUserNotFound", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "Ana", "ana@x.edu")
	ctx := context.Background()

	if err := db.SetOTP(ctx, user.ID, "123456", time.Now().Add(15*time.Minute)); err != nil {
		t.Fatalf("SetOTP() error = %v", err)
	}

	if err := db.UpdatePassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	got, err := db.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "new-hash")
	}
	if got.HasActiveOTP() {
		t.Error("OTP still active after password update — reset must consume the code")
	}
	if got.TokenVersion != user.TokenVersion+1 {
		t.Errorf("TokenVersion = %d, want %d (bumped)", got.TokenVersion, user.TokenVersion+1)
	}
}

func TestListPagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		createTestUser(t, db, "User", string(rune('a'+i))+"@x.edu")
	}

	page1, total, err := db.List(ctx, repository.ListOptions{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page1) != 2 {
		t.Errorf("len(page1) = %d, want 2", len(page1))
	}

	page3, _, err := db.List(ctx, repository.ListOptions{Page: 3, Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page3) != 1 {
		t.Errorf("len(page3) = %d, want 1", len(page3))
	}

	// Listed records never expose credential material in the profile
	// view, but the rows themselves carry it; make sure scanning works.
	if page1[0].ID == "" {
		t.Error("listed user has empty ID")
	}
}
