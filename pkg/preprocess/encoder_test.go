package preprocess

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoder(t *testing.T) {
	enc := FitLabelEncoder([]string{"udp", "tcp", "icmp", "tcp"})
	assert.Equal(t, []string{"icmp", "tcp", "udp"}, enc.Classes)

	codes, err := enc.Transform([]string{"tcp", "udp", "icmp"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 0}, codes)

	values, err := enc.InverseTransform(codes)
	require.NoError(t, err)
	assert.Equal(t, []string{"tcp", "udp", "icmp"}, values)

	_, err = enc.Encode("gre")
	assert.Error(t, err)

	_, err = enc.InverseTransform([]float64{3})
	assert.Error(t, err)
	_, err = enc.InverseTransform([]float64{0.5})
	assert.Error(t, err)
}

func TestLabelEncoderJSON(t *testing.T) {
	data, err := json.Marshal(FitLabelEncoder([]string{"b", "a"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"classes":["a","b"]}`, string(data))

	var decoded LabelEncoder
	require.NoError(t, json.Unmarshal(data, &decoded))
	code, err := decoded.Encode("b")
	require.NoError(t, err)
	assert.Equal(t, 1.0, code)
}

func TestEncodeCategorical(t *testing.T) {
	frame := readFrame(t, "protocol,service,bytes,label\ntcp,http,1,DDoS\nudp,dns,2,Normal\n")
	encoders, err := EncodeCategorical(frame, "label")
	require.NoError(t, err)

	assert.Len(t, encoders, 2)
	assert.Contains(t, encoders, "protocol")
	assert.NotContains(t, encoders, "label")

	protocol, _ := frame.Column("protocol")
	assert.Equal(t, []float64{0, 1}, protocol.Numbers)
	label, _ := frame.Column("label")
	assert.Equal(t, []string{"DDoS", "Normal"}, label.Strings)
	assert.Equal(t, []string{"protocol", "service", "bytes", "label"}, frame.Names())
}
