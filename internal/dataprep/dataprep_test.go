package dataprep

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepipe/internal/dataset"
)

func buildHouses(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromRecords(
		[]string{"price", "sqft", "garage", "neighborhood"},
		[][]string{
			{"250000", "1400", "1", "riverside"},
			{"310000", "1850", "2", "hilltop"},
			{"198000", "", "0", "riverside"},
			{"425000", "2600", "2", ""},
			{"275000", "1600", "NA", "hilltop"},
		},
	)
	require.NoError(t, err)
	return ds
}

func TestParseImputeStrategy(t *testing.T) {
	for _, s := range []string{"mean", "median", "mode", "constant", "drop"} {
		got, err := ParseImputeStrategy(s)
		require.NoError(t, err)
		assert.Equal(t, ImputeStrategy(s), got)
	}
	_, err := ParseImputeStrategy("magic")
	assert.ErrorContains(t, err, "unknown imputation strategy")
}

func TestImputerMean(t *testing.T) {
	ds := buildHouses(t)
	im := &Imputer{Strategy: ImputeMean}
	require.NoError(t, FitTransform(im, ds))

	sqft, err := ds.Column("sqft")
	require.NoError(t, err)
	assert.Equal(t, 0, sqft.MissingCount())
	// Mean of 1400, 1850, 2600, 1600.
	assert.InDelta(t, 1862.5, sqft.Floats[2], 1e-9)

	// Mean is numeric-only: categorical columns are left untouched.
	hood, err := ds.Column("neighborhood")
	require.NoError(t, err)
	assert.Equal(t, 1, hood.MissingCount())
}

func TestImputerMeanRejectsCategoricalColumn(t *testing.T) {
	ds := buildHouses(t)
	im := &Imputer{Strategy: ImputeMean, Columns: []string{"neighborhood"}}
	err := im.Fit(ds)
	assert.ErrorContains(t, err, "cannot fill categorical column")
}

func TestImputerMedianRejectsCategoricalColumn(t *testing.T) {
	ds := buildHouses(t)
	im := &Imputer{Strategy: ImputeMedian, Columns: []string{"sqft", "neighborhood"}}
	err := im.Fit(ds)
	assert.ErrorContains(t, err, "neighborhood")
}

func TestImputerMedianReplaysTrainFill(t *testing.T) {
	train := buildHouses(t)
	im := &Imputer{Strategy: ImputeMedian, Columns: []string{"sqft"}}
	require.NoError(t, FitTransform(im, train))

	test, err := dataset.FromRecords(
		[]string{"price", "sqft", "garage", "neighborhood"},
		[][]string{{"200000", "", "1", "riverside"}},
	)
	require.NoError(t, err)
	require.NoError(t, im.Transform(test))

	sqft, err := test.Column("sqft")
	require.NoError(t, err)
	// Median of the training split, not of the test split.
	assert.InDelta(t, 1725, sqft.Floats[0], 1e-9)
}

func TestImputerDrop(t *testing.T) {
	ds := buildHouses(t)
	im := &Imputer{Strategy: ImputeDrop}
	require.NoError(t, FitTransform(im, ds))
	assert.Equal(t, 2, ds.NumRows())

	price, err := ds.Numeric("price")
	require.NoError(t, err)
	assert.Equal(t, []float64{250000, 310000}, price)
}

func TestImputerConstant(t *testing.T) {
	ds := buildHouses(t)
	im := &Imputer{Strategy: ImputeConstant, FillValue: -1, FillLabel: "unknown"}
	require.NoError(t, FitTransform(im, ds))

	sqft, err := ds.Column("sqft")
	require.NoError(t, err)
	assert.Equal(t, -1.0, sqft.Floats[2])

	hood, err := ds.Column("neighborhood")
	require.NoError(t, err)
	assert.Equal(t, "unknown", hood.Strings[3])
}

func TestImputerNotFitted(t *testing.T) {
	im := &Imputer{Strategy: ImputeMean}
	err := im.Transform(buildHouses(t))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestOneHotEncoder(t *testing.T) {
	ds := buildHouses(t)
	require.NoError(t, FitTransform(&Imputer{Strategy: ImputeMode}, ds))

	enc := &OneHotEncoder{Columns: []string{"neighborhood"}}
	require.NoError(t, FitTransform(enc, ds))

	assert.False(t, ds.HasColumn("neighborhood"))
	assert.Equal(t, []string{"neighborhood=hilltop", "neighborhood=riverside"}, enc.EncodedNames("neighborhood"))

	hilltop, err := ds.Numeric("neighborhood=hilltop")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1, 1}, hilltop)
}

func TestOneHotEncoderDropFirst(t *testing.T) {
	ds := buildHouses(t)
	require.NoError(t, FitTransform(&Imputer{Strategy: ImputeMode}, ds))

	enc := &OneHotEncoder{Columns: []string{"neighborhood"}, DropFirst: true}
	require.NoError(t, FitTransform(enc, ds))

	assert.False(t, ds.HasColumn("neighborhood=hilltop"))
	assert.True(t, ds.HasColumn("neighborhood=riverside"))
}

func TestOneHotEncoderUnseenLevel(t *testing.T) {
	train := buildHouses(t)
	require.NoError(t, FitTransform(&Imputer{Strategy: ImputeMode}, train))
	enc := &OneHotEncoder{Columns: []string{"neighborhood"}}
	require.NoError(t, FitTransform(enc, train))

	test, err := dataset.FromRecords(
		[]string{"price", "sqft", "garage", "neighborhood"},
		[][]string{{"500000", "3000", "3", "seaside"}},
	)
	require.NoError(t, err)
	require.NoError(t, enc.Transform(test))

	// Unseen level encodes to all zeros.
	hilltop, err := test.Numeric("neighborhood=hilltop")
	require.NoError(t, err)
	riverside, err := test.Numeric("neighborhood=riverside")
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, hilltop)
	assert.Equal(t, []float64{0}, riverside)
}

func TestOrdinalEncoder(t *testing.T) {
	ds := buildHouses(t)
	require.NoError(t, FitTransform(&Imputer{Strategy: ImputeMode}, ds))

	enc := &OrdinalEncoder{Columns: []string{"neighborhood"}}
	require.NoError(t, FitTransform(enc, ds))

	col, err := ds.Column("neighborhood")
	require.NoError(t, err)
	assert.Equal(t, dataset.KindNumeric, col.Kind)
	// hilltop=0, riverside=1 by sorted order.
	assert.Equal(t, []float64{1, 0, 1, 0, 0}, col.Floats)
}

func TestStandardScaler(t *testing.T) {
	ds, err := dataset.FromRecords(
		[]string{"price", "sqft"},
		[][]string{{"100", "2"}, {"200", "4"}, {"300", "6"}},
	)
	require.NoError(t, err)

	sc := &StandardScaler{Exclude: []string{"price"}}
	require.NoError(t, FitTransform(sc, ds))

	sqft, err := ds.Numeric("sqft")
	require.NoError(t, err)
	assert.InDelta(t, 0, dataset.Mean(sqft), 1e-12)
	assert.InDelta(t, 1, dataset.StdDev(sqft), 1e-12)

	// Excluded target untouched.
	price, err := ds.Numeric("price")
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200, 300}, price)
}

func TestStandardScalerZeroVariance(t *testing.T) {
	ds, err := dataset.FromRecords(
		[]string{"flat"},
		[][]string{{"7"}, {"7"}, {"7"}},
	)
	require.NoError(t, err)

	sc := &StandardScaler{}
	require.NoError(t, FitTransform(sc, ds))

	flat, err := ds.Numeric("flat")
	require.NoError(t, err)
	// Centered but not divided by the zero spread.
	assert.Equal(t, []float64{0, 0, 0}, flat)
}

func TestMinMaxScaler(t *testing.T) {
	ds, err := dataset.FromRecords(
		[]string{"sqft"},
		[][]string{{"1000"}, {"1500"}, {"2000"}},
	)
	require.NoError(t, err)

	sc := &MinMaxScaler{}
	require.NoError(t, FitTransform(sc, ds))

	sqft, err := ds.Numeric("sqft")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, sqft)
}

func TestLogTransform(t *testing.T) {
	ds, err := dataset.FromRecords(
		[]string{"price"},
		[][]string{{"0"}, {"99"}},
	)
	require.NoError(t, err)

	lt := &LogTransform{Columns: []string{"price"}}
	require.NoError(t, FitTransform(lt, ds))

	price, err := ds.Numeric("price")
	require.NoError(t, err)
	assert.Equal(t, 0.0, price[0])
	assert.InDelta(t, math.Log(100), price[1], 1e-12)

	back := Expm1(price)
	assert.InDelta(t, 99, back[1], 1e-9)
}

func TestLogTransformRejectsNegative(t *testing.T) {
	ds, err := dataset.FromRecords([]string{"delta"}, [][]string{{"-5"}})
	require.NoError(t, err)

	lt := &LogTransform{Columns: []string{"delta"}}
	assert.ErrorContains(t, lt.Fit(ds), "negative")
}

func TestIndicator(t *testing.T) {
	ds := buildHouses(t)
	in := &Indicator{Source: "sqft", Threshold: 1700, As: "large"}
	require.NoError(t, FitTransform(in, ds))

	large, err := ds.Column("large")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1, 0}, large.Floats)
	assert.True(t, large.Missing[2]) // missing sqft stays missing
}

func TestChain(t *testing.T) {
	ds := buildHouses(t)
	chain := NewChain(
		&Imputer{Strategy: ImputeMedian},
		&Imputer{Strategy: ImputeMode, Columns: []string{"neighborhood"}},
		&OneHotEncoder{Columns: []string{"neighborhood"}},
		&StandardScaler{Exclude: []string{"price"}},
	)
	require.NoError(t, chain.Fit(ds))
	require.NoError(t, chain.Transform(ds))

	assert.False(t, ds.HasColumn("neighborhood"))
	for _, col := range ds.Columns() {
		assert.Equal(t, 0, col.MissingCount(), "column %s still has missing cells", col.Name)
	}
}
