package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesOf_StaticTable(t *testing.T) {
	cases := []struct {
		kind        KindId
		title       string
		setupTime   uint32
		timePerPage uint32
		noPrev      bool
		noNext      bool
	}{
		{KindDownloadFile, "Download File", 0, 1, true, false},
		{KindPreflight, "Preflight", 10, 20, false, false},
		{KindImpose, "Impose", 0, 5, false, false},
		{KindAnalyzer, "Analyzer", 0, 5, false, false},
		{KindColorSetup, "Color Setup", 2, 1, false, false},
		{KindRasterization, "Rasterization", 50, 15, false, false},
		{KindLoader, "Loader", 100, 1, false, true},
		{KindCutting, "Cutting", 10, 2, false, true},
		{KindLaminating, "Laminating", 10, 5, false, true},
		{KindMetrics, "Metrics", 2, 1, false, true},
	}
	for _, c := range cases {
		t.Run(c.title, func(t *testing.T) {
			attrs, err := AttributesOf(c.kind)
			require.NoError(t, err)
			assert.Equal(t, c.title, attrs.Title)
			assert.Equal(t, c.setupTime, attrs.SetupTime)
			assert.Equal(t, c.timePerPage, attrs.TimePerPage)
			assert.Equal(t, c.noPrev, attrs.NoPrevValid)
			assert.Equal(t, c.noNext, attrs.NoNextValid)
		})
	}
}

func TestAttributesOf_UnknownKind(t *testing.T) {
	_, err := AttributesOf(KindId(999))
	var unknown *UnknownKindId
	require.ErrorAs(t, err, &unknown)
}

func TestValidNextValidPrev_Agreement(t *testing.T) {
	for _, kind := range AllKinds() {
		next, err := ValidNext(kind)
		require.NoError(t, err)
		for other := range next {
			prev, err := ValidPrev(other)
			require.NoError(t, err)
			assert.Truef(t, prev[kind], "kind %d lists %d in valid_next but %d doesn't list %d in valid_prev", kind, other, other, kind)
		}
	}
}

func TestValidateParameter_RasterizationRange(t *testing.T) {
	require.NoError(t, ValidateParameter(Step{Kind: KindRasterization, NumCores: 1}))
	require.NoError(t, ValidateParameter(Step{Kind: KindRasterization, NumCores: 10}))

	err := ValidateParameter(Step{Kind: KindRasterization, NumCores: 0})
	var oor *OutOfRangeParameter
	require.ErrorAs(t, err, &oor)

	err = ValidateParameter(Step{Kind: KindRasterization, NumCores: 11})
	require.ErrorAs(t, err, &oor)
}

func TestValidateParameter_NullaryKindIgnoresNumCores(t *testing.T) {
	require.NoError(t, ValidateParameter(Step{Kind: KindLoader}))
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	steps := []Step{
		{Kind: KindDownloadFile},
		{Kind: KindPreflight},
		{Kind: KindRasterization, NumCores: 4},
	}
	for _, s := range steps {
		rec, err := Serialize(s)
		require.NoError(t, err)
		got, err := Deserialize(rec)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestDeserialize_MissingRasterizationCores(t *testing.T) {
	_, err := Deserialize(Record{ID: KindRasterization})
	var invalid *InvalidStep
	require.True(t, errors.As(err, &invalid))
}

func TestDeserialize_UnexpectedNumCoresOnNullaryKind(t *testing.T) {
	n := 3
	_, err := Deserialize(Record{ID: KindLoader, NumCores: &n})
	var invalid *InvalidStep
	require.True(t, errors.As(err, &invalid))
}

func TestDeserialize_UnknownId(t *testing.T) {
	_, err := Deserialize(Record{ID: KindId(42)})
	var invalid *InvalidStep
	require.True(t, errors.As(err, &invalid))
}

func TestSameKind_IgnoresConfiguration(t *testing.T) {
	a := Step{Kind: KindRasterization, NumCores: 1}
	b := Step{Kind: KindRasterization, NumCores: 8}
	assert.True(t, SameKind(a, b))
	assert.False(t, SameKind(a, Step{Kind: KindLoader}))
}
