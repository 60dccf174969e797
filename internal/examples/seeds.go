package examples

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed seeds/*.json
var seedFS embed.FS

// Seed returns a bundled corpus by name. An empty name or "none" yields an
// empty corpus.
func Seed(name string) ([]Example, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return []Example{}, nil
	}
	data, err := seedFS.ReadFile("seeds/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown seed corpus %q (available: %s)", name, strings.Join(SeedNames(), ", "))
	}
	return Decode(FormatJSON, data)
}

func SeedNames() []string {
	entries, err := seedFS.ReadDir("seeds")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}
