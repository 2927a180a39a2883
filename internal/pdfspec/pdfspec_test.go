package pdfspec

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manual = `EyesOnT API v1.5.2
POST https://portal:8888/ipa/apis/json/general/login
POST https://portal:8888/ipa/apis/json/provisioning/getProvisioningData
The call provisioning/getProvisioningData returns subscribers.
See general/login and again general/login.
   Webhook notifications are not supported   
A CALLBACK url may be configured later
nothing here`

func TestMine(t *testing.T) {
	res := Mine(manual)

	assert.Equal(t, []string{
		"/ipa/apis/json/general/login",
		"/ipa/apis/json/provisioning/getProvisioningData",
	}, res.Paths)
	assert.Equal(t, []string{
		"general/login",
		"provisioning/getProvisioningData",
	}, res.RPCTokens)
	assert.Equal(t, []string{
		"Webhook notifications are not supported",
		"A CALLBACK url may be configured later",
	}, res.HookLines)
}

func TestMineEmpty(t *testing.T) {
	res := Mine("")
	assert.Empty(t, res.Paths)
	assert.Empty(t, res.RPCTokens)
	assert.Empty(t, res.HookLines)
}

func TestWriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "extract")
	require.NoError(t, WriteReport(dir, "", manual, Mine(manual)))

	read := func(suffix string) string {
		b, err := os.ReadFile(filepath.Join(dir, DefaultPrefix+"_"+suffix+".txt"))
		require.NoError(t, err)
		return string(b)
	}
	assert.Equal(t, manual, read("fulltext"))
	assert.Equal(t, "/ipa/apis/json/general/login\n/ipa/apis/json/provisioning/getProvisioningData", read("paths"))
	assert.Equal(t, "general/login\nprovisioning/getProvisioningData", read("rpc_tokens"))
	assert.Contains(t, read("hook_lines"), "CALLBACK")
}

// writePDF lays out a single-page document with one text line per entry.
func writePDF(t *testing.T, lines ...string) string {
	t.Helper()

	var content bytes.Buffer
	content.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	for i, l := range lines {
		if i > 0 {
			content.WriteString("T*\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", l)
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var doc bytes.Buffer
	doc.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = doc.Len()
		fmt.Fprintf(&doc, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := doc.Len()
	fmt.Fprintf(&doc, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&doc, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&doc, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), "manual.pdf")
	require.NoError(t, os.WriteFile(path, doc.Bytes(), 0o644))
	return path
}

func TestExtractText(t *testing.T) {
	path := writePDF(t, "POST /ipa/apis/json/general/logout ", "no callback support")

	text, pages, err := ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)

	res := Mine(text)
	assert.Contains(t, res.Paths, "/ipa/apis/json/general/logout")
	assert.Contains(t, res.RPCTokens, "general/logout")
}

func TestExtractTextMissingFile(t *testing.T) {
	_, _, err := ExtractText(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}
