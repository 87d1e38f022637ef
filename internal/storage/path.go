package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var slugUnsafePattern = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLength = 48

// BuildExportPath produces the object key for an exported result set,
// partitioned by date so downstream scanners can prune by day.
func BuildExportPath(question string, exportTime time.Time, traceID string) (string, error) {
	slug := slugify(question)
	if slug == "" {
		return "", fmt.Errorf("question yields an empty object name")
	}
	if strings.TrimSpace(traceID) == "" {
		return "", fmt.Errorf("trace id is required")
	}

	ts := exportTime.UTC()
	return path.Join(
		"exports",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%s-%s.parquet", ts.Format("150405"), slug, traceID),
	), nil
}

func slugify(question string) string {
	slug := slugUnsafePattern.ReplaceAllString(strings.ToLower(question), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	return slug
}
