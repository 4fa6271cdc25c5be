package appServer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/courseportal/config"
	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/database/memory"
	repository "github.com/ds124wfegd/courseportal/internal/database/postgres"
	"github.com/ds124wfegd/courseportal/pkg/postgres"
	"github.com/sirupsen/logrus"
)

type storage struct {
	enrollment database.EnrollmentStore
	courses    database.CourseRepository
	users      database.UserRepository
	waitlist   database.WaitlistRepository
	content    database.ContentRepository
	schools    database.SchoolRepository

	ping  func(ctx context.Context) error
	close func()
}

func openStorage(ctx context.Context, cfg *config.DatabaseConfig) (*storage, error) {
	switch cfg.Driver {
	case "memory":
		logrus.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &storage{
			enrollment: store,
			courses:    store.Courses(),
			users:      store.Users(),
			waitlist:   store.Waitlist(),
			content:    store.Content(),
			schools:    store.Schools(),
			ping:       func(context.Context) error { return nil },
			close:      func() {},
		}, nil

	case "postgres":
		db, err := postgres.NewPostgresDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// Run database migrations
		if err := postgres.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return newPostgresStorage(db), nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func newPostgresStorage(db *sql.DB) *storage {
	return &storage{
		enrollment: repository.NewEnrollmentStore(db),
		courses:    repository.NewCourseRepository(db),
		users:      repository.NewUserRepository(db),
		waitlist:   repository.NewWaitlistRepository(db),
		content:    repository.NewContentRepository(db),
		schools:    repository.NewSchoolRepository(db),
		ping:       db.PingContext,
		close: func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		},
	}
}
