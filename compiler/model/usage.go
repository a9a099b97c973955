package model

import (
	"strings"

	"github.com/brimdata/semq/pkg/field"
)

// MergeUsage concatenates the lists and removes later duplicates of a
// path, unioning their flags into the first occurrence.
func MergeUsage(lists ...[]FieldUsage) []FieldUsage {
	var out []FieldUsage
	index := make(map[string]int)
	for _, list := range lists {
		for _, u := range list {
			key := u.Path.Key()
			if len(u.Path) == 0 {
				key = "\x01" + key
			}
			if i, ok := index[key]; ok {
				out[i] = unionFlags(out[i], u)
				continue
			}
			index[key] = len(out)
			out = append(out, u)
		}
	}
	return out
}

func unionFlags(a, b FieldUsage) FieldUsage {
	a.AnalyticFunctionUse = a.AnalyticFunctionUse || b.AnalyticFunctionUse
	if b.UniqueKeyRequirement != nil {
		if a.UniqueKeyRequirement == nil {
			a.UniqueKeyRequirement = &UniqueKeyRequirement{IsCount: b.UniqueKeyRequirement.IsCount}
		} else if b.UniqueKeyRequirement.IsCount && !a.UniqueKeyRequirement.IsCount {
			a.UniqueKeyRequirement = &UniqueKeyRequirement{IsCount: true}
		}
	}
	return a
}

// JoinedUsage prefixes each usage path with joinPath.
func JoinedUsage(joinPath field.Path, usage []FieldUsage) []FieldUsage {
	if len(joinPath) == 0 {
		return usage
	}
	out := make([]FieldUsage, 0, len(usage))
	for _, u := range usage {
		u.Path = u.Path.Prepend(joinPath)
		out = append(out, u)
	}
	return out
}

// UsageAt relocates usage to at, which is how references through a
// dimension are attributed to the site that used the dimension.
func UsageAt(usage []FieldUsage, at *Location) []FieldUsage {
	if at == nil {
		return usage
	}
	out := make([]FieldUsage, 0, len(usage))
	for _, u := range usage {
		u.At = at
		out = append(out, u)
	}
	return out
}

func UsagePaths(usage []FieldUsage) field.List {
	var out field.List
	for _, u := range usage {
		if len(u.Path) > 0 {
			out = out.Append(u.Path)
		}
	}
	return out
}

// CommaList renders strs as a natural language list: "a", "a and b", or
// "a, b, and c".
func CommaList(strs []string, combinator string) string {
	switch len(strs) {
	case 0:
		return ""
	case 1:
		return strs[0]
	case 2:
		return strs[0] + " " + combinator + " " + strs[1]
	}
	return strings.Join(strs[:len(strs)-1], ", ") + ", " + combinator + " " + strs[len(strs)-1]
}

// FormatPaths renders the distinct paths as a list of quoted fields.
func FormatPaths(paths field.List, combinator string) string {
	var deduped field.List
	for _, p := range paths {
		deduped = deduped.Append(p)
	}
	strs := make([]string, 0, len(deduped))
	for _, p := range deduped {
		strs = append(strs, p.Quoted())
	}
	return CommaList(strs, combinator)
}

func FormatUsage(usage []FieldUsage) string {
	var paths field.List
	for _, u := range usage {
		if len(u.Path) > 0 {
			paths = append(paths, u.Path)
		}
	}
	return FormatPaths(paths, "and")
}
