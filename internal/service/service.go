package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	appErrors "github.com/benglish/academic-core/pkg/errors"
)

// transactor runs fn inside one database transaction; nested calls join the outer one.
type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// progressRecomputer recomputes derived student progress.
type progressRecomputer interface {
	RecomputeMany(ctx context.Context, studentIDs []string) error
}

func lookupError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}

func internalError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// uniqueSorted returns ids without duplicates or blanks in ascending order. Locks keyed on
// these ids are always taken in this order.
func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
