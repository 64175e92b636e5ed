package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func countsFrom(pairs ...any) *Counts {
	counts := newCounts()
	for i := 0; i < len(pairs); i += 2 {
		counts.add(pairs[i].(string), pairs[i+1].(int))
	}
	return counts
}

func TestPlotBarChart(t *testing.T) {
	setup(t)

	counts := countsFrom(
		"Total", 42,
		"@Committee", 5,
		"@Member", 25,
		"@Guest", 12,
	)

	artifact, err := PlotBarChart(counts, Meta{
		XLabel:      "Role Name",
		YLabel:      "Number of Messages Sent",
		Title:       "Most Active Roles in #general",
		Filename:    "general_channel_stats.png",
		Description: "Bar chart of messages sent by different roles.",
		ExtraText:   "Roles are counted once per message.",
	})
	require.NoError(t, err)
	require.Equal(t, "general_channel_stats.png", artifact.Filename)
	require.Equal(t, "Bar chart of messages sent by different roles.", artifact.Description)
	require.NotEmpty(t, artifact.PNG)
	// PNG magic bytes
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, artifact.PNG[:4])
}

func TestPlotBarChartNotEnoughData(t *testing.T) {
	setup(t)

	counts := countsFrom("Total", 0, "@Member", 0)

	_, err := PlotBarChart(counts, Meta{Filename: "empty.png"})
	require.ErrorIs(t, err, ErrNotEnoughData)
}

func TestOrderLabels(t *testing.T) {
	counts := countsFrom(
		"Total", 10,
		"#a", 3,
		"#b", 0,
		"#c", 1,
		"#d", 0,
		"#e", 0,
		"#f", 2,
		"#g", 0,
	)

	labels := orderLabels(counts)

	// the first five non-Total buckets stay even when zero, later
	// zero buckets are dropped, Total moves to the end
	require.Equal(t, []string{"#a", "#b", "#c", "#d", "#e", "#f", "Total"}, labels)
}

func TestValueTicks(t *testing.T) {
	ticks := valueTicks(14)
	require.Len(t, ticks, 16)
	require.Zero(t, ticks[0].Value)
	require.Equal(t, float64(15), ticks[15].Value)

	ticks = valueTicks(100)
	// step is ceil(101/15) = 7
	require.Equal(t, float64(7), ticks[1].Value)
}
