package generic_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// MONEY TESTS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSplitEvenly_LastChunkAbsorbsRemainder(t *testing.T) {
	parts := generic.SplitEvenly(d("100"), 3)

	require.Len(t, parts, 3)
	assert.Equal(t, "33.33", generic.FormatMoney(parts[0]))
	assert.Equal(t, "33.33", generic.FormatMoney(parts[1]))
	assert.Equal(t, "33.34", generic.FormatMoney(parts[2]))
	assert.True(t, generic.Sum(parts).Equal(d("100")))
}

func TestSplitEvenly_SmallTotal_NeverNegative(t *testing.T) {
	// GIVEN: Fewer cents than chunks
	parts := generic.SplitEvenly(d("0.05"), 12)

	// THEN: Leading chunks are zero, the last one holds everything
	for _, p := range parts {
		assert.False(t, p.IsNegative())
	}
	assert.True(t, generic.Sum(parts).Equal(d("0.05")))
}

func TestSplitEvenly_SingleTerm(t *testing.T) {
	assert.Len(t, generic.SplitEvenly(d("9.99"), 1), 1)
	assert.Len(t, generic.SplitEvenly(d("9.99"), 0), 1)
}

func TestRoundMoney_AndFormat(t *testing.T) {
	assert.Equal(t, "10.13", generic.FormatMoney(generic.RoundMoney(d("10.125"))))
	assert.Equal(t, "7.00", generic.FormatMoney(d("7")))
}

func TestTruncateMoney_NeverRoundsUp(t *testing.T) {
	assert.Equal(t, "10.00", generic.FormatMoney(generic.TruncateMoney(d("10.005"))))
	assert.Equal(t, "10.12", generic.FormatMoney(generic.TruncateMoney(d("10.129"))))
	assert.Equal(t, "3.00", generic.FormatMoney(generic.TruncateMoney(d("3"))))
}

func TestParseMoney(t *testing.T) {
	m, err := generic.ParseMoney(" 12.5 ")
	require.NoError(t, err)
	assert.Equal(t, "12.50", generic.FormatMoney(m))

	_, err = generic.ParseMoney("twelve")
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)
}

func TestMinMaxNonNegative(t *testing.T) {
	assert.True(t, generic.MinDecimal(d("1"), d("2")).Equal(d("1")))
	assert.True(t, generic.MaxDecimal(d("1"), d("2")).Equal(d("2")))
	assert.True(t, generic.NonNegative(d("-3")).IsZero())
}

func TestAccountID_IsCash(t *testing.T) {
	assert.True(t, generic.SourceCash.IsCash())
	assert.True(t, generic.AccountID("").IsCash())
	assert.False(t, generic.AccountID("card-a").IsCash())
}

// =============================================================================
// TIME TESTS
// =============================================================================

func TestParseDate(t *testing.T) {
	tp, err := generic.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, 2024, tp.Year())
	assert.Equal(t, time.February, tp.Month())
	assert.Equal(t, 29, tp.Day())

	tp, err = generic.ParseDate("2024-02-29T23:15:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", tp.String())

	_, err = generic.ParseDate("29/02/2024")
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestAddMonths_ClampsToMonthEnd(t *testing.T) {
	jan31 := generic.NewTimePoint(2024, time.January, 31)

	assert.Equal(t, "2024-02-29", jan31.AddMonths(1).String())
	assert.Equal(t, "2024-03-31", jan31.AddMonths(2).String())
	assert.Equal(t, "2024-04-30", jan31.AddMonths(3).String())
	assert.Equal(t, "2025-02-28", jan31.AddMonths(13).String())
}

func TestHorizon(t *testing.T) {
	start := generic.NewTimePoint(2024, time.December, 30)

	p := generic.Horizon(start, 3)
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, "2025-01-01", p.End.String())
	assert.True(t, p.Contains(generic.NewTimePoint(2024, time.December, 31)))
	assert.False(t, p.Contains(generic.NewTimePoint(2025, time.January, 2)))

	empty := generic.Horizon(start, 0)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Days())
}

func TestTimePoint_TextCodec(t *testing.T) {
	var tp generic.TimePoint
	require.NoError(t, tp.UnmarshalText([]byte("2024-05-06")))

	out, err := tp.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06", string(out))

	require.NoError(t, tp.UnmarshalText([]byte("")))
	assert.True(t, tp.IsZero())
}

func TestDaysBetween(t *testing.T) {
	a := generic.NewTimePoint(2024, time.February, 27)
	b := generic.NewTimePoint(2024, time.March, 2)
	assert.Equal(t, 4, generic.DaysBetween(a, b))
}
