package bridge

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateImports(t *testing.T) {
	allowed := allowedImportSet(nil)

	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{
			name: "allowed single import",
			code: "import \"fmt\"\nfmt.Println(1)",
		},
		{
			name: "allowed import block",
			code: "import (\n\t\"fmt\"\n\t\"strings\"\n)\nfmt.Println(strings.ToUpper(\"a\"))",
		},
		{
			name:    "os is forbidden",
			code:    "import \"os\"\nos.Getenv(\"HOME\")",
			wantErr: true,
		},
		{
			name:    "exec is forbidden",
			code:    "import \"os/exec\"",
			wantErr: true,
		},
		{
			name:    "net is forbidden in block",
			code:    "import (\n\t\"fmt\"\n\t\"net/http\"\n)",
			wantErr: true,
		},
		{
			name: "aliased allowed import",
			code: "import j \"encoding/json\"\n_ = j.Valid",
		},
		{
			name: "no imports",
			code: "x := 1 + 1\n_ = x",
		},
		{
			name: "gobook helpers allowed",
			code: "import \"gobook\"\ngobook.RegisterService(\"svc\")",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateImports(tt.code, allowed)
			if tt.wantErr {
				if !errors.Is(err, ErrForbiddenImport) {
					t.Errorf("want ErrForbiddenImport, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateImportsExtra(t *testing.T) {
	allowed := allowedImportSet([]string{"container/heap"})
	if err := validateImports("import \"container/heap\"", allowed); err != nil {
		t.Errorf("extra import should be allowed: %v", err)
	}
}

func TestImportPath(t *testing.T) {
	tests := []struct {
		clause string
		want   string
	}{
		{`"fmt"`, "fmt"},
		{`f "fmt"`, "fmt"},
		{`_ "sort"`, "sort"},
		{`// "commented"`, ""},
		{`)`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		if got := importPath(tt.clause); got != tt.want {
			t.Errorf("importPath(%q) = %q, want %q", tt.clause, got, tt.want)
		}
	}
}

func TestSplitLeadingImports(t *testing.T) {
	code := "// setup\nimport \"fmt\"\nimport j \"encoding/json\"\nimport (\n\t\"strings\"\n\t\"sort\"\n)\nx := 1\nfmt.Println(x)"

	imports, body := splitLeadingImports(code)

	want := []string{
		`import "fmt"`,
		`import j "encoding/json"`,
		`import "strings"`,
		`import "sort"`,
	}
	if len(imports) != len(want) {
		t.Fatalf("imports = %v, want %v", imports, want)
	}
	for i := range want {
		if imports[i] != want[i] {
			t.Errorf("imports[%d] = %q, want %q", i, imports[i], want[i])
		}
	}
	if body != "x := 1\nfmt.Println(x)" {
		t.Errorf("body = %q", body)
	}
}

func TestSplitLeadingImportsNoImports(t *testing.T) {
	code := "x := 1\n_ = x"
	imports, body := splitLeadingImports(code)
	if len(imports) != 0 {
		t.Errorf("imports = %v, want none", imports)
	}
	if body != code {
		t.Errorf("body = %q, want the input unchanged", body)
	}
}

func TestSplitLeadingImportsOnly(t *testing.T) {
	imports, body := splitLeadingImports("import \"fmt\"\n")
	if len(imports) != 1 || imports[0] != `import "fmt"` {
		t.Errorf("imports = %v", imports)
	}
	if strings.TrimSpace(body) != "" {
		t.Errorf("body = %q, want empty", body)
	}
}
