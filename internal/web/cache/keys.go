package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Key prefixes for cached read models
const (
	SolutionsPrefix = "solutions:"
	BenchmarkPrefix = "benchmark:"
)

// CategoryCountsKey addresses the marketplace category counts
func CategoryCountsKey() string {
	return SolutionsPrefix + "category_counts"
}

// BenchmarkKey addresses one municipality's benchmark within a band.
// An empty band means all municipalities.
func BenchmarkKey(profileID uuid.UUID, band string) string {
	if band == "" {
		band = "all"
	}
	return fmt.Sprintf("%s%s:%s", BenchmarkPrefix, profileID, band)
}
