package features

import (
	"math"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/dataset"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/preprocess"
)

// Derived rate feature names
const (
	BytesPerPacket = "bytes_per_packet"
	PacketRate     = "pkt_rate"
	ByteRate       = "byte_rate"
)

// RateColumns names the traffic counters the rate features are derived from
type RateColumns struct {
	Bytes    string
	Packets  string
	Duration string
}

// DefaultRateColumns are the counter names in the network log exports
var DefaultRateColumns = RateColumns{
	Bytes:    "total_bytes",
	Packets:  "total_packets",
	Duration: "duration",
}

// AddRateFeatures returns a copy of frame with per-packet and per-second
// rates appended. A rate is only added when both of its source columns are
// numeric. Undefined ratios are imputed with the column median afterwards,
// along with any other missing numeric cell.
func AddRateFeatures(frame *dataset.Frame, cols RateColumns) *dataset.Frame {
	if cols.Bytes == "" {
		cols.Bytes = DefaultRateColumns.Bytes
	}
	if cols.Packets == "" {
		cols.Packets = DefaultRateColumns.Packets
	}
	if cols.Duration == "" {
		cols.Duration = DefaultRateColumns.Duration
	}

	out := frame.Clone()
	bytes := numericColumn(out, cols.Bytes)
	packets := numericColumn(out, cols.Packets)
	duration := numericColumn(out, cols.Duration)

	if bytes != nil && packets != nil {
		out.AddNumeric(BytesPerPacket, ratio(bytes, packets, packets))
	}
	if packets != nil && duration != nil {
		out.AddNumeric(PacketRate, ratio(packets, duration, packets))
	}
	if bytes != nil && duration != nil {
		out.AddNumeric(ByteRate, ratio(bytes, duration, nil))
	}

	for _, col := range out.Columns() {
		if col.Kind != dataset.Numeric {
			continue
		}
		if median, ok := preprocess.Median(col.Numbers); ok {
			for i, v := range col.Numbers {
				if math.IsNaN(v) {
					col.Numbers[i] = median
				}
			}
		}
	}
	return out
}

func numericColumn(frame *dataset.Frame, name string) []float64 {
	col, ok := frame.Column(name)
	if !ok || col.Kind != dataset.Numeric {
		return nil
	}
	return col.Numbers
}

// ratio divides elementwise; a zero denominator or a zero in guard yields NaN
func ratio(num, den, guard []float64) []float64 {
	out := make([]float64, len(num))
	for i := range num {
		if den[i] == 0 || (guard != nil && guard[i] == 0) {
			out[i] = math.NaN()
			continue
		}
		v := num[i] / den[i]
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}
