package storage

import (
	"context"
	"fmt"
	"strings"

	"chakradeposit/internal/domain"
	"chakradeposit/internal/infrastructure/mysql"
	"chakradeposit/internal/infrastructure/sqlite"
)

// Journal is the submission record shared by the sqlite and mysql backends.
type Journal interface {
	RecordSubmission(ctx context.Context, submission domain.Submission) error
	MarkMined(ctx context.Context, txHash string, blockNumber uint64, status domain.SubmissionStatus) error
	MarkFailed(ctx context.Context, txHash string, status domain.SubmissionStatus, reason string) error
	GetSubmission(ctx context.Context, txHash string) (domain.Submission, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Journal = (*sqlite.Repository)(nil)
	_ Journal = (*mysql.Repository)(nil)
)

// OpenJournal returns nil when no dsn is configured.
func OpenJournal(driver, dsn string) (Journal, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		repo, err := sqlite.NewRepository(dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "mysql":
		repo, err := mysql.NewRepository(dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}
}
