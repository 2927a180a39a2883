// Package pdfspec pulls the endpoint inventory out of the vendor's PDF manual.
package pdfspec

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const DefaultPrefix = "pelephone_api_v1.5.2"

var (
	pathRe     = regexp.MustCompile(`/ipa/apis/json/[A-Za-z0-9_/]+`)
	rpcTokenRe = regexp.MustCompile(`\b(?:general|provisioning)/[A-Za-z][A-Za-z0-9_]*\b`)
	hookRe     = regexp.MustCompile(`(?i)hook|webhook|callback`)
)

// Result is what Mine found in the extracted text.
type Result struct {
	Paths     []string
	RPCTokens []string
	HookLines []string
}

// ExtractText returns the plain text of every page, pages separated by a
// blank line, and the page count.
func ExtractText(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	n := r.NumPage()
	texts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\n\n"), n, nil
}

func Mine(text string) Result {
	res := Result{
		Paths:     uniqueSorted(pathRe.FindAllString(text, -1)),
		RPCTokens: uniqueSorted(rpcTokenRe.FindAllString(text, -1)),
	}
	for _, line := range strings.Split(text, "\n") {
		if !hookRe.MatchString(line) {
			continue
		}
		if line = strings.TrimSpace(line); line != "" {
			res.HookLines = append(res.HookLines, line)
		}
	}
	return res
}

// WriteReport writes <prefix>_fulltext.txt, _paths.txt, _rpc_tokens.txt and
// _hook_lines.txt into dir.
func WriteReport(dir, prefix, text string, res Result) error {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	files := []struct {
		suffix  string
		content string
	}{
		{"fulltext", text},
		{"paths", strings.Join(res.Paths, "\n")},
		{"rpc_tokens", strings.Join(res.RPCTokens, "\n")},
		{"hook_lines", strings.Join(res.HookLines, "\n")},
	}
	for _, f := range files {
		name := filepath.Join(dir, prefix+"_"+f.suffix+".txt")
		if err := os.WriteFile(name, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	log.Printf("[PDF] paths=%d rpc_tokens=%d hook_lines=%d -> %s", len(res.Paths), len(res.RPCTokens), len(res.HookLines), dir)
	return nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
