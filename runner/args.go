package runner

import "strings"

// argKey returns the identity used to deduplicate an argument:
// "--key=value" and "--flag" use the long name, "-Xvalue" its first two
// characters, "KEY=value" the assignment key.
func argKey(arg string) string {
	switch {
	case strings.HasPrefix(arg, "--"):
		key, _, _ := strings.Cut(arg[2:], "=")
		return key
	case strings.HasPrefix(arg, "-") && len(arg) > 2:
		return arg[:2]
	case strings.Contains(arg, "="):
		key, _, _ := strings.Cut(arg, "=")
		return key
	default:
		return arg
	}
}

// DedupArgs merges user arguments over defaults. The last value for a
// key wins and keeps the position of the key's first appearance.
// A user "--no-X" removes "--X" (in any form) and is not itself kept.
func DedupArgs(defaults, user []string) []string {
	seen := make(map[string]string, len(defaults)+len(user))
	var order []string

	set := func(arg string) {
		key := argKey(arg)
		if _, ok := seen[key]; !ok {
			order = append(order, key)
		}
		seen[key] = arg
	}

	for _, arg := range defaults {
		set(arg)
	}
	for _, arg := range user {
		if removed, ok := strings.CutPrefix(arg, "--no-"); ok {
			if _, exists := seen[removed]; exists {
				delete(seen, removed)
				for i, k := range order {
					if k == removed {
						order = append(order[:i], order[i+1:]...)
						break
					}
				}
			}
			continue
		}
		set(arg)
	}

	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, seen[k])
	}
	return out
}
