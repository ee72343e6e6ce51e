package features

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/dataset"
)

func readFrame(t *testing.T, csv string) *dataset.Frame {
	t.Helper()
	frame, err := dataset.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return frame
}

func TestAddRateFeatures(t *testing.T) {
	frame := readFrame(t, `total_bytes,total_packets,duration,label
1000,10,2,DDoS
500,0,5,Normal
300,3,0,Normal
`)

	out := AddRateFeatures(frame, RateColumns{})

	assert.Equal(t, 4, frame.NumCols(), "input frame is not modified")
	assert.Equal(t, []string{"total_bytes", "total_packets", "duration", "label", BytesPerPacket, PacketRate, ByteRate}, out.Names())

	bpp, _ := out.Column(BytesPerPacket)
	assert.Equal(t, []float64{100, 100, 100}, bpp.Numbers, "zero packets and the median fill")

	rate, _ := out.Column(PacketRate)
	// packets=0 and duration=0 are both undefined; median of {5} fills them
	assert.Equal(t, []float64{5, 5, 5}, rate.Numbers)

	byteRate, _ := out.Column(ByteRate)
	assert.Equal(t, []float64{500, 100, 300}, byteRate.Numbers)

	for _, col := range out.Columns() {
		if col.Kind == dataset.Numeric {
			for _, v := range col.Numbers {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "column %s", col.Name)
			}
		}
	}
}

func TestAddRateFeaturesMissingSources(t *testing.T) {
	frame := readFrame(t, `bytes,duration
10,2
20,
`)
	out := AddRateFeatures(frame, RateColumns{Bytes: "bytes"})

	assert.False(t, out.HasColumn(BytesPerPacket))
	assert.False(t, out.HasColumn(PacketRate))
	require.True(t, out.HasColumn(ByteRate))

	duration, _ := out.Column("duration")
	assert.Equal(t, []float64{2, 2}, duration.Numbers, "other numeric columns are median filled")
}

func TestOneHotEncode(t *testing.T) {
	frame := readFrame(t, `protocol,bytes
udp,1
tcp,2
,3
tcp,4
`)
	out := OneHotEncode(frame, []string{"protocol", "absent"})

	assert.Equal(t, []string{"bytes", "protocol_tcp", "protocol_udp"}, out.Names())
	tcp, _ := out.Column("protocol_tcp")
	udp, _ := out.Column("protocol_udp")
	assert.Equal(t, []float64{0, 1, 0, 1}, tcp.Numbers)
	assert.Equal(t, []float64{1, 0, 0, 0}, udp.Numbers)
	assert.True(t, frame.HasColumn("protocol"), "input frame is not modified")
}

func TestSelectTopKByVariance(t *testing.T) {
	frame := readFrame(t, `a,b,c,d,name
1,10,5,7,x
2,20,5,,y
3,30,5,,z
`)

	tests := []struct {
		name string
		k    int
		want []string
	}{
		{"all", 10, []string{"b", "a", "c", "d"}},
		{"top two", 2, []string{"b", "a"}},
		{"zero", 0, []string{}},
		{"negative", -1, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectTopKByVariance(frame, tt.k))
		})
	}
}

func TestSelectTopKTiesKeepOrder(t *testing.T) {
	frame := readFrame(t, `x,y,z
1,1,0
3,3,0
`)
	assert.Equal(t, []string{"x", "y", "z"}, SelectTopKByVariance(frame, DefaultTopK))

	variances := Variances(frame)
	require.Len(t, variances, 3)
	assert.InDelta(t, 2.0, variances[0].Variance, 1e-12)
}
