package portal

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"portalproxy-backend/lib/textutil"

	"github.com/antzucaro/matchr"
	"gopkg.in/yaml.v3"
)

//go:embed overrides.yaml
var defaultOverrides []byte

// minimum jaro-winkler similarity for a key to be suggested
const suggestionThreshold = 0.85

type Override struct {
	Code    string `yaml:"code" json:"code"`
	Region  string `yaml:"region,omitempty" json:"region,omitempty"`
	BaseUrl string `yaml:"base_url" json:"base_url"`
	AppName string `yaml:"app_name,omitempty" json:"app_name,omitempty"`
}

func (o Override) Key() string {
	return overrideKey(o.Code, o.Region)
}

func overrideKey(code, region string) string {
	code = textutil.NormalizeName(code)
	region = textutil.NormalizeName(region)
	if region == "" {
		return code
	}
	return code + "/" + region
}

// OverrideTable maps institutions with known non-standard hosting to their base url.
type OverrideTable struct {
	entries []Override
	byKey   map[string]int
}

func parseOverrides(data []byte) ([]Override, error) {
	var entries []Override
	err := yaml.Unmarshal(data, &entries)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Code) == "" || strings.TrimSpace(e.BaseUrl) == "" {
			return nil, fmt.Errorf("override %d: code and base_url are required", i)
		}
	}
	return entries, nil
}

// NewOverrideTable builds a table out of entries, later entries replace earlier
// entries with the same key.
func NewOverrideTable(entries ...Override) OverrideTable {
	table := OverrideTable{byKey: map[string]int{}}
	for _, e := range entries {
		e.BaseUrl = strings.TrimSuffix(strings.TrimSpace(e.BaseUrl), "/")
		key := e.Key()
		if i, ok := table.byKey[key]; ok {
			table.entries[i] = e
			continue
		}
		table.byKey[key] = len(table.entries)
		table.entries = append(table.entries, e)
	}
	return table
}

// DefaultOverrides returns the table that ships with the binary.
func DefaultOverrides() OverrideTable {
	entries, err := parseOverrides(defaultOverrides)
	if err != nil {
		panic(fmt.Sprintf("embedded overrides are invalid: %v", err))
	}
	return NewOverrideTable(entries...)
}

// LoadOverrides returns the default table with the entries of the yaml file at
// `path` layered on top. An empty path returns just the defaults.
func LoadOverrides(path string) (OverrideTable, error) {
	entries, err := parseOverrides(defaultOverrides)
	if err != nil {
		return OverrideTable{}, err
	}
	if path == "" {
		return NewOverrideTable(entries...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return OverrideTable{}, fmt.Errorf("read overrides: %w", err)
	}
	extra, err := parseOverrides(data)
	if err != nil {
		return OverrideTable{}, fmt.Errorf("parse overrides %s: %w", path, err)
	}
	return NewOverrideTable(append(entries, extra...)...), nil
}

// Lookup finds the entry for an exact code and region, falling back to a
// region-less entry for the code.
func (t OverrideTable) Lookup(code, region string) (Override, bool) {
	if i, ok := t.byKey[overrideKey(code, region)]; ok {
		return t.entries[i], true
	}
	if i, ok := t.byKey[overrideKey(code, "")]; ok {
		return t.entries[i], true
	}
	return Override{}, false
}

func (t OverrideTable) Entries() []Override {
	return slices.Clone(t.entries)
}

type Suggestion struct {
	Key   string
	Score float64
}

// Search ranks every key of the table by its similarity to `query`.
func (t OverrideTable) Search(query string) []Suggestion {
	query = strings.ToLower(strings.TrimSpace(query))
	suggestions := make([]Suggestion, 0, len(t.entries))
	for _, e := range t.entries {
		suggestions = append(suggestions, Suggestion{
			Key:   e.Key(),
			Score: matchr.JaroWinkler(query, e.Key(), false),
		})
	}
	slices.SortStableFunc(suggestions, func(a, b Suggestion) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return suggestions
}

// Suggest returns the closest other key to the given institution, or an empty string
// if nothing is similar enough.
func (t OverrideTable) Suggest(code, region string) string {
	query := overrideKey(code, region)
	for _, result := range t.Search(query) {
		if result.Score < suggestionThreshold {
			break
		}
		if result.Key != query {
			return result.Key
		}
	}
	return ""
}
