package reports

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Report describes one report bundle directory. Directory names follow
// <epochMillis>-<env>-<status>-<workflow>-<number>-<attempt>[-<pr>].
type Report struct {
	Path        string
	Date        time.Time
	Environment string
	Status      string
	Workflow    string
	Number      string
	Attempt     string
	PR          string
}

// DateMillis is the report timestamp as rendered into data attributes.
func (r Report) DateMillis() int64 {
	return r.Date.UnixMilli()
}

type Catalog struct {
	Dir string
}

// List returns the report bundles under Dir, newest first. Entries that are
// not directories or whose name does not parse are skipped. A missing Dir
// yields an empty list.
func (c *Catalog) List() ([]Report, error) {
	entries, err := os.ReadDir(c.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	out := make([]Report, 0, len(names))
	for _, name := range names {
		if r, ok := ParseName(name); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// ParseName splits a report directory name into its fields.
func ParseName(name string) (Report, bool) {
	parts := strings.Split(name, "-")
	if len(parts) != 6 && len(parts) != 7 {
		return Report{}, false
	}
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || ms < 0 {
		return Report{}, false
	}
	for _, p := range parts[1:] {
		if p == "" {
			return Report{}, false
		}
	}

	r := Report{
		Path:        name,
		Date:        time.UnixMilli(ms).UTC(),
		Environment: parts[1],
		Status:      parts[2],
		Workflow:    parts[3],
		Number:      parts[4],
		Attempt:     parts[5],
	}
	if len(parts) == 7 {
		r.PR = parts[6]
	}
	return r, true
}

// Facets holds the distinct filter values of a report list, sorted.
type Facets struct {
	Environments []string
	Statuses     []string
	Workflows    []string
}

func FacetsOf(list []Report) Facets {
	envs := map[string]struct{}{}
	statuses := map[string]struct{}{}
	workflows := map[string]struct{}{}
	for _, r := range list {
		envs[r.Environment] = struct{}{}
		statuses[r.Status] = struct{}{}
		workflows[r.Workflow] = struct{}{}
	}
	return Facets{
		Environments: sortedKeys(envs),
		Statuses:     sortedKeys(statuses),
		Workflows:    sortedKeys(workflows),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
