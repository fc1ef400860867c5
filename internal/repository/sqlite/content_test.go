package sqlite

import (
	"context"
	"testing"

	"github.com/ngampusin/identity/internal/model"
)

func TestAuthoredSummary(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ana := createTestUser(t, db, "Ana", "ana@x.edu")
	bob := createTestUser(t, db, "Bob", "bob@x.edu")

	post := &model.Post{AuthorID: ana.ID, Title: "hello", Body: "first post"}
	if err := db.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if _, err := db.CreateComment(ctx, post.ID, bob.ID, "hi"); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	if _, err := db.CreateLike(ctx, post.ID, ana.ID); err != nil {
		t.Fatalf("CreateLike() error = %v", err)
	}

	anaSummary, err := db.AuthoredSummary(ctx, ana.ID)
	if err != nil {
		t.Fatalf("AuthoredSummary() error = %v", err)
	}
	if anaSummary.Posts != 1 || anaSummary.Comments != 0 || anaSummary.Likes != 1 {
		t.Errorf("ana summary = %+v, want {Posts:1 Comments:0 Likes:1}", anaSummary)
	}

	bobSummary, err := db.AuthoredSummary(ctx, bob.ID)
	if err != nil {
		t.Fatalf("AuthoredSummary() error = %v", err)
	}
	if bobSummary.Posts != 0 || bobSummary.Comments != 1 {
		t.Errorf("bob summary = %+v, want {Posts:0 Comments:1 Likes:0}", bobSummary)
	}
}

func TestDeleteAccountDataCascade(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ana := createTestUser(t, db, "Ana", "ana@x.edu")
	bob := createTestUser(t, db, "Bob", "bob@x.edu")

	// Ana authors a post; Bob comments on it and likes it. Ana also
	// comments on Bob's post. Deleting Ana must take her post (and
	// Bob's comment/like hanging off it) and her comment elsewhere,
	// but leave Bob's own post and account alone.
	anaPost := &model.Post{AuthorID: ana.ID, Title: "ana's post", Body: "..."}
	if err := db.CreatePost(ctx, anaPost); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	bobPost := &model.Post{AuthorID: bob.ID, Title: "bob's post", Body: "..."}
	if err := db.CreatePost(ctx, bobPost); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	if _, err := db.CreateComment(ctx, anaPost.ID, bob.ID, "nice"); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	if _, err := db.CreateLike(ctx, anaPost.ID, bob.ID); err != nil {
		t.Fatalf("CreateLike() error = %v", err)
	}
	if _, err := db.CreateComment(ctx, bobPost.ID, ana.ID, "thanks"); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}

	if err := db.DeleteAccountData(ctx, ana.ID); err != nil {
		t.Fatalf("DeleteAccountData() error = %v", err)
	}

	exists, err := db.UserExists(ctx, ana.ID)
	if err != nil {
		t.Fatalf("UserExists() error = %v", err)
	}
	if exists {
		t.Error("deleted user still present")
	}

	anaSummary, err := db.AuthoredSummary(ctx, ana.ID)
	if err != nil {
		t.Fatalf("AuthoredSummary() error = %v", err)
	}
	if anaSummary != (model.AuthoredSummary{}) {
		t.Errorf("deleted user still has content: %+v", anaSummary)
	}

	// Bob's comment and like lived on Ana's post — gone with the post.
	bobSummary, err := db.AuthoredSummary(ctx, bob.ID)
	if err != nil {
		t.Fatalf("AuthoredSummary() error = %v", err)
	}
	if bobSummary.Posts != 1 {
		t.Errorf("bob's own post count = %d, want 1", bobSummary.Posts)
	}
	if bobSummary.Comments != 0 || bobSummary.Likes != 0 {
		t.Errorf("bob summary = %+v, want his comment and like on ana's post removed", bobSummary)
	}

	// Bob himself is untouched.
	if exists, _ := db.UserExists(ctx, bob.ID); !exists {
		t.Error("unrelated user was deleted")
	}
}

func TestDeleteAccountDataOnEmptyAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ana := createTestUser(t, db, "Ana", "ana@x.edu")

	if err := db.DeleteAccountData(ctx, ana.ID); err != nil {
		t.Fatalf("DeleteAccountData() error = %v", err)
	}
	if exists, _ := db.UserExists(ctx, ana.ID); exists {
		t.Error("user still present after deletion")
	}
}
