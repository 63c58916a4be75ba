package histostore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/histostack/internal/histo"
	"github.com/kingrea/histostack/internal/samples"
)

func sampleHisto(t *testing.T, title string, values ...float64) *histo.Histogram {
	t.Helper()
	h, err := histo.Uniform(title, 50, 0, 100)
	require.NoError(t, err)
	for _, v := range values {
		h.Fill(v, 1.5)
	}
	return h
}

func TestEncodeDecodeEachCompression(t *testing.T) {
	h := sampleHisto(t, "jet_pt", 1, 2, 3, 42, 42, 99)
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		data, err := Encode(h, c)
		require.NoError(t, err, c.String())
		got, err := Decode(data)
		require.NoError(t, err, c.String())
		require.Equal(t, h.Contents, got.Contents, c.String())
		require.Equal(t, h.SumW2, got.SumW2, c.String())
		require.Equal(t, h.Edges, got.Edges, c.String())
	}
}

func TestDecodeRejectsForeignData(t *testing.T) {
	_, err := Decode([]byte("definitely not a histogram"))
	require.ErrorIs(t, err, ErrBadMagic)
	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeRejectsInvalidEdges(t *testing.T) {
	for name, edges := range map[string][]float64{
		"descending": {2, 1, 0},
		"repeated":   {0, 1, 1},
		"single":     {0},
	} {
		t.Run(name, func(t *testing.T) {
			bins := max(len(edges)-1, 0)
			h := &histo.Histogram{Title: "met", Edges: edges, Contents: make([]float64, bins), SumW2: make([]float64, bins)}
			data, err := Encode(h, CompressionNone)
			require.NoError(t, err)
			_, err = Decode(data)
			require.Error(t, err)
			require.Contains(t, err.Error(), "edges")
		})
	}
}

func TestFingerprintIsStable(t *testing.T) {
	a := sampleHisto(t, "m", 10, 20)
	b := sampleHisto(t, "m", 10, 20)
	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	require.Equal(t, fa, fb)
	require.Len(t, fa, 64)
	b.Fill(30, 1)
	fc, err := Fingerprint(b)
	require.NoError(t, err)
	require.NotEqual(t, fa, fc)
}

func TestDiagnoseShowsTitle(t *testing.T) {
	data, err := Encode(sampleHisto(t, "met"), CompressionZstd)
	require.NoError(t, err)
	diag, err := Diagnose(data)
	require.NoError(t, err)
	require.True(t, strings.Contains(diag, `"met"`), diag)
}

func TestScanListsOnlyActiveSamplesWithoutLoading(t *testing.T) {
	dir := t.TempDir()
	reg, err := samples.NewRegistry([]samples.Sample{
		{Name: "ttbar", Legend: "tt"},
		{Name: "data", IsData: true},
	}, nil)
	require.NoError(t, err)
	for _, s := range []string{"ttbar", "data", "retired"} {
		require.NoError(t, WriteFile(PathFor(dir, s, "sel", "pt"), sampleHisto(t, "pt", 5), CompressionZstd))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ttbar", "sel", "notes.txt"), []byte("x"), 0o644))

	store := New(dir, reg)
	stubs, err := store.Scan()
	require.NoError(t, err)
	require.Len(t, stubs, 2)
	require.Equal(t, "ttbar", stubs[0].Sample)
	require.Equal(t, "tt", stubs[0].Legend)
	require.Equal(t, "sel", stubs[0].Analyzer)
	require.Equal(t, "pt", stubs[0].Name)
	require.True(t, stubs[1].IsData)
	require.False(t, stubs[0].Loaded())

	loaded, err := store.Load(stubs[0])
	require.NoError(t, err)
	require.Equal(t, 1.5, loaded.Histo.Integral())
	require.NotEmpty(t, loaded.History)
}

func TestScanToleratesMissingSampleDirectory(t *testing.T) {
	reg, err := samples.NewRegistry([]samples.Sample{{Name: "absent"}}, nil)
	require.NoError(t, err)
	stubs, err := New(t.TempDir(), reg).Scan()
	require.NoError(t, err)
	require.Empty(t, stubs)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("lz4")
	require.NoError(t, err)
	require.Equal(t, CompressionLZ4, c)
	c, err = ParseCompression("")
	require.NoError(t, err)
	require.Equal(t, CompressionZstd, c)
	_, err = ParseCompression("brotli")
	require.Error(t, err)
}

func TestRecompressRewritesOnlyForeignFiles(t *testing.T) {
	dir := t.TempDir()
	h, err := histo.Uniform("met", 1000, 0, 100)
	require.NoError(t, err)
	h.Fill(10, 1)
	lz4Path := PathFor(dir, "A", "sel", "met")
	nonePath := PathFor(dir, "B", "sel", "met")
	require.NoError(t, WriteFile(lz4Path, h, CompressionLZ4))
	require.NoError(t, WriteFile(nonePath, h, CompressionNone))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a histogram"), 0o644))
	data, err := os.ReadFile(lz4Path)
	require.NoError(t, err)
	before, err := CompressionOf(data)
	require.NoError(t, err)
	require.Equal(t, CompressionLZ4, before)

	n, err := Recompress(dir, CompressionNone)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	for _, path := range []string{lz4Path, nonePath} {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		c, err := CompressionOf(data)
		require.NoError(t, err)
		require.Equal(t, CompressionNone, c)
		got, err := Decode(data)
		require.NoError(t, err)
		require.Equal(t, h.Contents, got.Contents)
	}

	n, err = Recompress(dir, CompressionNone)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRecompressRejectsForeignHistFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.hist"), []byte("nope"), 0o644))
	_, err := Recompress(dir, CompressionZstd)
	require.ErrorIs(t, err, ErrBadMagic)
}
