package auth

import (
	"context"
	"testing"
	"time"
)

func TestResolve_NewGoogleID_CreatesUser(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	user, err := f.resolver.Resolve(ctx, IdentityClaims{
		GoogleID: "g-1", Email: "alice@example.com", Name: "Alice", Picture: "https://example.com/a.png",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if user.ID == "" {
		t.Fatal("ユーザーIDが採番されていない")
	}
	if user.GoogleID != "g-1" || user.Email != "alice@example.com" || user.Name != "Alice" {
		t.Errorf("user = %+v", user)
	}
	if !user.CreatedAt.Equal(testStart) || !user.UpdatedAt.Equal(testStart) {
		t.Errorf("timestamps = %v / %v, want %v", user.CreatedAt, user.UpdatedAt, testStart)
	}

	stored, _ := f.users.FindByGoogleID(ctx, "g-1")
	if stored == nil || stored.ID != user.ID {
		t.Errorf("stored = %+v", stored)
	}
}

func TestResolve_ExistingGoogleID_OverwritesProfile(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	first, _ := f.resolver.Resolve(ctx, IdentityClaims{
		GoogleID: "g-1", Email: "old@example.com", Name: "Old", Picture: "https://example.com/old.png",
	})

	f.clock.Advance(time.Hour)
	second, err := f.resolver.Resolve(ctx, IdentityClaims{
		GoogleID: "g-1", Email: "new@example.com", Name: "New",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("ID = %q, want %q (同じGoogle IDで別ユーザーが作られた)", second.ID, first.ID)
	}
	if second.Email != "new@example.com" || second.Name != "New" || second.Picture != "" {
		t.Errorf("profile = %+v, want overwritten", second)
	}
	if !second.CreatedAt.Equal(testStart) {
		t.Errorf("CreatedAt = %v, want %v", second.CreatedAt, testStart)
	}
	if !second.UpdatedAt.Equal(testStart.Add(time.Hour)) {
		t.Errorf("UpdatedAt = %v, want %v", second.UpdatedAt, testStart.Add(time.Hour))
	}

	users, _ := f.users.List(ctx)
	if len(users) != 1 {
		t.Errorf("len(users) = %d, want 1", len(users))
	}
}

func TestResolve_EmailTakenByOtherGoogleID_ReturnsError(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	f.createUser(t, "g-1", "shared@example.com")

	if _, err := f.resolver.Resolve(ctx, IdentityClaims{GoogleID: "g-2", Email: "shared@example.com"}); err == nil {
		t.Fatal("emailの一意制約違反がエラーにならない")
	}
}

func TestResolve_MissingClaims_ReturnsError(t *testing.T) {
	f := newTokenFixture(t)

	if _, err := f.resolver.Resolve(context.Background(), IdentityClaims{Email: "a@example.com"}); err == nil {
		t.Error("GoogleIDなしでエラーにならない")
	}
	if _, err := f.resolver.Resolve(context.Background(), IdentityClaims{GoogleID: "g-1"}); err == nil {
		t.Error("Emailなしでエラーにならない")
	}
}
