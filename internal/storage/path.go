package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildCorpusKey returns the object key of a named example corpus.
func BuildCorpusKey(corpus, format string) (string, error) {
	if err := validatePathComponent(corpus, "corpus name"); err != nil {
		return "", err
	}
	ext, err := extensionFor(format)
	if err != nil {
		return "", err
	}
	return path.Join("examples", corpus+ext), nil
}

// BuildCorpusSnapshotKey returns a time partitioned key for a historical copy
// of the corpus stored under key.
func BuildCorpusSnapshotKey(key string, at time.Time) (string, error) {
	key = strings.Trim(key, "/")
	if key == "" {
		return "", fmt.Errorf("corpus key is required")
	}
	base := path.Base(key)
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if err := validatePathComponent(name, "corpus name"); err != nil {
		return "", err
	}
	ts := at.UTC()
	return path.Join(
		path.Dir(key),
		"history",
		name,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%s%s", name, ts.Format("150405.000000000"), ext),
	), nil
}

func extensionFor(format string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json":
		return ".json", nil
	case "parquet":
		return ".parquet", nil
	default:
		return "", fmt.Errorf("unsupported corpus format %q", format)
	}
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
