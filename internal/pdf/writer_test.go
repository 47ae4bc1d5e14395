package pdf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentBytes(t *testing.T) {
	doc := NewDocument("test")
	p := doc.AddPage()
	p.Text(72, 700, FontRegular, 10, "hello world")
	p.Line(72, 690, 300, 690)

	out, err := doc.Bytes()
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-1.4")))
	assert.Contains(t, string(out), "(hello world) Tj")
	assert.Contains(t, string(out), "/Count 1")
	assert.Contains(t, string(out), "/BaseFont /Helvetica")
	assert.Contains(t, string(out), "/BaseFont /Helvetica-Bold")
	assert.True(t, bytes.HasSuffix(out, []byte("%%EOF\n")))
}

func TestDocumentBytes_Errors(t *testing.T) {
	t.Run("no pages", func(t *testing.T) {
		doc := NewDocument("empty")
		_, err := doc.Bytes()
		assert.ErrorContains(t, err, "no pages")
	})

	t.Run("double close", func(t *testing.T) {
		doc := NewDocument("once")
		doc.AddPage().Text(10, 10, FontRegular, 10, "x")
		_, err := doc.Bytes()
		require.NoError(t, err)
		_, err = doc.Bytes()
		assert.ErrorContains(t, err, "already closed")
	})
}

func TestDocument_MultiPageKids(t *testing.T) {
	doc := NewDocument("multi")
	for i := 0; i < 3; i++ {
		doc.AddPage().Text(72, 700, FontRegular, 10, "page")
	}

	out, err := doc.Bytes()
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "/Count 3")
	assert.Equal(t, 3, strings.Count(s, "/Type /Page\n"))
	assert.Equal(t, 1, strings.Count(s, "/Type /Pages"))
}

func TestReserveText_ResolvedAtClose(t *testing.T) {
	doc := NewDocument("deferred")

	var regions []*TextRegion
	for i := 0; i < 3; i++ {
		p := doc.AddPage()
		p.Text(72, 700, FontRegular, 10, "body")
		regions = append(regions, p.ReserveText(500, 30, FontRegular, 8))
	}

	// Total page count only known once composition is finished.
	for _, r := range regions {
		r.Set("3")
	}

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(out), "(3) Tj"))
}

func TestReserveText_UnsetRendersNothing(t *testing.T) {
	doc := NewDocument("unset")
	p := doc.AddPage()
	p.Text(72, 700, FontRegular, 10, "body")
	p.ReserveText(500, 30, FontRegular, 8)

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "Tj"))
}

func TestEscapeString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"with (parens)", `with \(parens\)`},
		{`back\slash`, `back\\slash`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeString(tt.input))
		})
	}
}
