// Package storagetest opens throwaway SQLite stores for tests.
package storagetest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/harlequingg/nearhelp/internal/data"
	"github.com/harlequingg/nearhelp/internal/storage"
)

// Open creates a fresh database file under t.TempDir and closes it when the
// test ends.
func Open(t *testing.T) *storage.Store {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "nearhelp.db")
	s, err := storage.Open(context.Background(), storage.Config{DSN: dsn})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// User inserts a user named name with a placeholder password hash.
func User(t *testing.T, s *storage.Store, name string) *data.User {
	t.Helper()
	u := &data.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", name),
		PasswordHash: []byte("not-a-real-hash"),
	}
	if err := s.Users.Insert(context.Background(), u); err != nil {
		t.Fatalf("insert user %s: %v", name, err)
	}
	return u
}

// Task inserts a task owned by owner, due in dueIn.
func Task(t *testing.T, s *storage.Store, owner *data.User, title string, dueIn time.Duration, bounty float64) *data.Task {
	t.Helper()
	task := &data.Task{
		Title:   title,
		Due:     time.Now().UTC().Add(dueIn).Truncate(time.Second),
		Lat:     52.52,
		Lng:     13.405,
		WillPay: bounty > 0,
		Bounty:  bounty,
		UserID:  owner.ID,
	}
	if err := s.Tasks.Insert(context.Background(), task); err != nil {
		t.Fatalf("insert task %s: %v", title, err)
	}
	return task
}
