// Package services contains the server-side business logic. Every operation
// takes the authenticated device id, passes the authorization gate and then
// works through repositories vended by a repomanager.RepositoryManager.
package services

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/google/uuid"
)

// validateIDs rejects ids that are not UUIDs before they reach the database.
func validateIDs(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("bad id %q: %w", id, common.ErrValidation)
		}
	}
	return nil
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), common.ErrValidation)
}

// NormalizeTags trims tags, drops empty ones and duplicates keeping the first
// occurrence. An empty result becomes the single default tag.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return []string{common.DefaultEventTag}
	}
	return out
}
