package ledger

// crc16 computes CRC-16/XMODEM (poly 0x1021, init 0).
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// MethodID maps a getter name to its numeric id.
func MethodID(name string) int64 {
	return int64(crc16([]byte(name))) | 0x10000
}
