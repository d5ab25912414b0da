package service

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var suffixPattern = regexp.MustCompile(`^(.*) \((\d+)\)$`)

// ResolveName returns a display name that does not collide with any name in
// the scope. A trailing " (n)" on the candidate's base name is stripped
// before checking; when the plain name is taken, the next free counter after
// the highest existing one is used. The caller queries the right scope
// ((teacher, category) for teacher documents, (category) for property
// documents) before calling.
func ResolveName(candidate string, existing []string) string {
	ext := filepath.Ext(candidate)
	base := strings.TrimSuffix(candidate, ext)
	if m := suffixPattern.FindStringSubmatch(base); m != nil {
		base = m[1]
	}

	scope := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		scope[strings.ToLower(name)] = struct{}{}
	}

	plain := base + ext
	if _, taken := scope[strings.ToLower(plain)]; !taken {
		return plain
	}

	max := 0
	lowerBase := strings.ToLower(base)
	for _, name := range existing {
		nameExt := filepath.Ext(name)
		if !strings.EqualFold(nameExt, ext) {
			continue
		}
		nameBase := strings.TrimSuffix(name, nameExt)
		if strings.ToLower(nameBase) == lowerBase {
			continue
		}
		m := suffixPattern.FindStringSubmatch(nameBase)
		if m == nil || strings.ToLower(m[1]) != lowerBase {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil && n > max {
			max = n
		}
	}

	return fmt.Sprintf("%s (%d)%s", base, max+1, ext)
}
