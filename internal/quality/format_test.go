package quality

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestGofmtClean 检查仓库内所有 Go 源码都已通过 gofmt 格式化。
func TestGofmtClean(t *testing.T) {
	root, err := projectRoot()
	if err != nil {
		t.Fatalf("find project root: %v", err)
	}

	var goFiles []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if name == "vendor" || name == ".git" || name == "web" || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			goFiles = append(goFiles, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk project: %v", err)
	}
	if len(goFiles) == 0 {
		t.Fatal("no Go files found")
	}

	gofmt, err := exec.LookPath("gofmt")
	if err != nil {
		t.Skip("gofmt not in PATH")
	}

	for _, file := range goFiles {
		out, err := exec.Command(gofmt, "-l", file).Output()
		if err != nil {
			t.Errorf("gofmt %s: %v", file, err)
			continue
		}
		if len(out) > 0 {
			t.Errorf("%s 未格式化，请运行 go fmt ./...", file)
		}
	}
}

// projectRoot 从当前目录向上查找 go.mod 所在目录。
func projectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
