package callback

import (
	"encoding/binary"
	"fmt"
	"time"
)

// encodeWire serialises a payload into the compact binary layout:
// [action_len u8][action][timestamp u32 BE][user_id u32 BE][nonce 4 bytes]
// [param_count u8]{[key_len u8][key][val_len u8][val]}...
func encodeWire(action string, params map[string]string, userID, nonce uint32, now time.Time) []byte {
	buf := make([]byte, 0, maxWireSize)

	buf = append(buf, byte(len(action)))
	buf = append(buf, action...)

	var ts [4]byte
	binary.BigEndian.PutUint32(ts[:], uint32(now.Unix())) //nolint:gosec // truncation acceptable until 2106
	buf = append(buf, ts[:]...)

	var uid [4]byte
	binary.BigEndian.PutUint32(uid[:], userID)
	buf = append(buf, uid[:]...)

	var n [4]byte
	binary.BigEndian.PutUint32(n[:], nonce)
	buf = append(buf, n[:]...)

	buf = append(buf, byte(len(params)))
	for k, v := range params {
		buf = append(buf, byte(len(k)))
		buf = append(buf, k...)
		buf = append(buf, byte(len(v)))
		buf = append(buf, v...)
	}

	return buf
}

// decodeWire parses the binary layout written by encodeWire.
func decodeWire(wire []byte) (*Payload, error) {
	pos := 0

	actionLen, err := readByte(wire, pos)
	if err != nil {
		return nil, err
	}
	pos++

	action, err := readBytes(wire, pos, int(actionLen))
	if err != nil {
		return nil, err
	}
	pos += int(actionLen)

	ts, err := readUint32(wire, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	userID, err := readUint32(wire, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	nonce, err := readUint32(wire, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	paramCount, err := readByte(wire, pos)
	if err != nil {
		return nil, err
	}
	pos++

	params := make(map[string]string, paramCount)
	for range int(paramCount) {
		keyLen, err := readByte(wire, pos)
		if err != nil {
			return nil, err
		}
		pos++
		key, err := readBytes(wire, pos, int(keyLen))
		if err != nil {
			return nil, err
		}
		pos += int(keyLen)

		valLen, err := readByte(wire, pos)
		if err != nil {
			return nil, err
		}
		pos++
		val, err := readBytes(wire, pos, int(valLen))
		if err != nil {
			return nil, err
		}
		pos += int(valLen)

		params[string(key)] = string(val)
	}

	return &Payload{
		Action:    string(action),
		Params:    params,
		UserID:    userID,
		Nonce:     nonce,
		CreatedAt: time.Unix(int64(ts), 0),
	}, nil
}

func readByte(b []byte, pos int) (byte, error) {
	if pos >= len(b) {
		return 0, fmt.Errorf("callback: truncated wire at %d", pos)
	}
	return b[pos], nil
}

func readBytes(b []byte, pos, n int) ([]byte, error) {
	if pos+n > len(b) {
		return nil, fmt.Errorf("callback: truncated wire at %d", pos)
	}
	return b[pos : pos+n], nil
}

func readUint32(b []byte, pos int) (uint32, error) {
	raw, err := readBytes(b, pos, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(raw), nil
}
