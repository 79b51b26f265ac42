package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFRenderer_Render(t *testing.T) {
	var buf bytes.Buffer
	err := NewPDFRenderer().Render(&buf, "Arztbrief", "Sehr geehrte Kollegin,\nPatient klagt über Übelkeit.")
	require.NoError(t, err)

	out := buf.Bytes()
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")), "missing PDF header")
	assert.Contains(t, string(out), "%%EOF")
}

func TestPDFRenderer_Paginates(t *testing.T) {
	long := strings.Repeat("Zeile mit Befundtext für die Seitenumbruchprüfung.\n", 200)

	var short, paged bytes.Buffer
	r := NewPDFRenderer()
	require.NoError(t, r.Render(&short, "t", "kurz"))
	require.NoError(t, r.Render(&paged, "t", long))

	assert.Equal(t, 1, bytes.Count(short.Bytes(), []byte("/Type /Page\n")))
	assert.Greater(t, bytes.Count(paged.Bytes(), []byte("/Type /Page\n")), 1)
}

func TestPDFRenderer_NilWriter(t *testing.T) {
	assert.Error(t, NewPDFRenderer().Render(nil, "t", "x"))
}
