package bridge

import (
	"fmt"
	"strings"
)

// defaultAllowedImports is the stdlib whitelist for sandboxed code. Packages
// granting filesystem, network, exec, or unsafe access are excluded; file
// access goes through the mounted scratch directory instead.
var defaultAllowedImports = []string{
	"bytes",
	"encoding/base64",
	"encoding/csv",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"math/rand",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",

	// The display/service helpers injected by the worker.
	"gobook",
}

// allowedImportSet builds the whitelist map for a worker.
func allowedImportSet(extra []string) map[string]bool {
	allowed := make(map[string]bool, len(defaultAllowedImports)+len(extra))
	for _, pkg := range defaultAllowedImports {
		allowed[pkg] = true
	}
	for _, pkg := range extra {
		allowed[pkg] = true
	}
	return allowed
}

// validateImports checks that the code only imports whitelisted packages.
// Import extraction is textual, matching how the interpreter itself will see
// the source once wrapped.
func validateImports(code string, allowed map[string]bool) error {
	var imports []string

	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "import (") {
			inBlock = true
			continue
		}
		if inBlock {
			if strings.HasPrefix(trimmed, ")") {
				inBlock = false
				continue
			}
			if pkg := importPath(trimmed); pkg != "" {
				imports = append(imports, pkg)
			}
			continue
		}
		if strings.HasPrefix(trimmed, "import ") {
			if pkg := importPath(strings.TrimPrefix(trimmed, "import ")); pkg != "" {
				imports = append(imports, pkg)
			}
		}
	}

	var forbidden []string
	for _, pkg := range imports {
		if !allowed[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("%w: %v", ErrForbiddenImport, forbidden)
	}
	return nil
}

// splitLeadingImports separates import declarations at the top of a snippet
// from the statement body. The interpreter accepts a lone import declaration
// or a statement list as one source, but not both together, so each half is
// evaluated on its own. Each returned declaration is a single-clause import
// statement, aliases preserved.
func splitLeadingImports(code string) (imports []string, body string) {
	lines := strings.Split(code, "\n")

	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])

		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			i++
			continue
		}
		if strings.HasPrefix(trimmed, "import (") {
			i++
			for i < len(lines) {
				clause := strings.TrimSpace(lines[i])
				i++
				if strings.HasPrefix(clause, ")") {
					break
				}
				if clause == "" || strings.HasPrefix(clause, "//") {
					continue
				}
				imports = append(imports, "import "+clause)
			}
			continue
		}
		if strings.HasPrefix(trimmed, "import ") {
			imports = append(imports, trimmed)
			i++
			continue
		}
		break
	}

	return imports, strings.Join(lines[i:], "\n")
}

// importPath extracts the quoted import path from one import clause line,
// tolerating aliases and ignoring comments.
func importPath(clause string) string {
	clause = strings.TrimSpace(clause)
	if clause == "" || strings.HasPrefix(clause, "//") {
		return ""
	}
	start := strings.IndexByte(clause, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(clause[start+1:], '"')
	if end < 0 {
		return ""
	}
	return clause[start+1 : start+1+end]
}
