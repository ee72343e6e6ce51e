package preprocess

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/dataset"
)

const dirtyCSV = `protocol,duration,total_bytes,label
tcp,1.0,100,DDoS
tcp,1.0,100,DDoS
udp,,300,Normal
,2.0,,Normal
tcp,4.0,500,Malware
udp,3.0,300,Normal
`

func readFrame(t *testing.T, content string) *dataset.Frame {
	t.Helper()
	frame, err := dataset.ReadCSV(strings.NewReader(content))
	require.NoError(t, err)
	return frame
}

func frameRows(f *dataset.Frame) [][]string {
	rows := make([][]string, f.NumRows())
	for i := range rows {
		rows[i] = f.Row(i)
	}
	return rows
}

func TestClean(t *testing.T) {
	raw := readFrame(t, dirtyCSV)
	clean := Clean(raw)

	t.Run("no missing values", func(t *testing.T) {
		for _, col := range clean.Columns() {
			assert.Zero(t, col.MissingCount(), "column %s", col.Name)
		}
	})

	t.Run("no duplicates", func(t *testing.T) {
		assert.Equal(t, clean.NumRows(), clean.DropDuplicates().NumRows())
	})

	t.Run("imputes median and mode", func(t *testing.T) {
		// After dedup: durations 1,NaN,2,4,3 -> median 2.5; bytes 100,300,NaN,500,300 -> 300
		duration, _ := clean.Column("duration")
		bytes, _ := clean.Column("total_bytes")
		protocol, _ := clean.Column("protocol")

		udpMissing := -1
		for i, row := range frameRows(clean) {
			if row[0] == "udp" && row[3] == "Normal" && bytes.Numbers[i] == 300 && duration.Numbers[i] == 2.5 {
				udpMissing = i
			}
		}
		assert.NotEqual(t, -1, udpMissing, "udp row gets the duration median")

		// protocol mode among tcp,udp,tcp,udp is a tie broken to "tcp"
		found := false
		for i := range protocol.Strings {
			if duration.Numbers[i] == 2 {
				assert.Equal(t, "tcp", protocol.Strings[i])
				assert.Equal(t, 300.0, bytes.Numbers[i])
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("idempotent", func(t *testing.T) {
		assert.Equal(t, frameRows(clean), frameRows(Clean(clean)))
	})

	t.Run("input untouched", func(t *testing.T) {
		assert.Equal(t, 6, raw.NumRows())
		duration, _ := raw.Column("duration")
		assert.True(t, math.IsNaN(duration.Numbers[2]))
	})
}

func TestCleanIdempotentAfterImputationCollisions(t *testing.T) {
	// Row 2 becomes identical to row 1 once its gap is filled with the median
	raw := readFrame(t, "a,b\n1,x\n,x\n1,x\n5,y\n1,y\n")
	once := Clean(raw)
	assert.Equal(t, frameRows(once), frameRows(Clean(once)))
	assert.Equal(t, once.NumRows(), once.DropDuplicates().NumRows())
}

func TestCleanAllMissing(t *testing.T) {
	raw := readFrame(t, "a,b,label\n,,x\n,,y\n")
	clean := Clean(raw)

	a, _ := clean.Column("a")
	assert.Equal(t, []float64{0, 0}, a.Numbers)

	raw2 := dataset.NewFrame()
	require.NoError(t, raw2.AddCategorical("c", []string{"", ""}))
	clean2 := Clean(raw2)
	c, _ := clean2.Column("c")
	assert.Equal(t, []string{MissingCategory}, c.Strings)
}

func TestMode(t *testing.T) {
	mode, ok := Mode([]string{"b", "a", "b", "a", "c", ""})
	require.True(t, ok)
	assert.Equal(t, "a", mode)

	_, ok = Mode([]string{"", ""})
	assert.False(t, ok)
}

func TestMedian(t *testing.T) {
	m, ok := Median([]float64{3, math.NaN(), 1, 2, 10})
	require.True(t, ok)
	assert.Equal(t, 2.5, m)

	_, ok = Median([]float64{math.NaN()})
	assert.False(t, ok)
}
