package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	BookingID uint64 `json:"booking_id"`
	Reference string `json:"reference"`
}

func TestCloudEvent_EncodeParse(t *testing.T) {
	ce, err := NewCloudEvent("service-payment", "payment.settled", samplePayload{BookingID: 9, Reference: "pi_1"})
	require.NoError(t, err)
	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.NotEmpty(t, ce.ID)

	raw, err := json.Marshal(ce)
	require.NoError(t, err)

	parsed, err := ParseCloudEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "payment.settled", parsed.Type)

	var data samplePayload
	require.NoError(t, parsed.ParseData(&data))
	assert.Equal(t, samplePayload{BookingID: 9, Reference: "pi_1"}, data)
}

func TestParseCloudEvent_RejectsMalformed(t *testing.T) {
	_, err := ParseCloudEvent([]byte("{not json"))
	assert.Error(t, err)

	_, err = ParseCloudEvent([]byte(`{"specversion":"1.0","data":{}}`))
	assert.Error(t, err)

	ce := CloudEvent{ID: "x", Type: "t"}
	assert.Error(t, ce.ParseData(&samplePayload{}))
}
