package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodID_KnownValues(t *testing.T) {
	assert.Equal(t, int64(85143), MethodID("seqno"))
	assert.Equal(t, int64(0x10000), MethodID(""), "empty name keeps the marker bit")
}

func TestMethodID_MarkerBit(t *testing.T) {
	for _, name := range []string{"counter", "get_wallet_data", "balance"} {
		id := MethodID(name)
		assert.NotZero(t, id&0x10000, name)
		assert.Less(t, id, int64(0x20000), name)
	}
}

func TestCRC16_XModemCheck(t *testing.T) {
	assert.Equal(t, uint16(0x31C3), crc16([]byte("123456789")))
}
