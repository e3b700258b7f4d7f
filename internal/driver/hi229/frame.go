// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hi229

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/relabs-tech/spatial/internal/spatial"
	"github.com/relabs-tech/spatial/internal/vector"
)

// CH protocol framing: 0x5A 0xA5, payload length (u16 LE), CRC16 (u16 LE),
// payload. The CRC covers the first four header bytes and the payload.
const (
	sync1      = 0x5A
	sync2      = 0xA5
	headerSize = 6
	maxRawLen  = 512

	itemID       = 0x90
	itemAccRaw   = 0xA0
	itemGyrRaw   = 0xB0
	itemMagRaw   = 0xC0
	itemEuler    = 0xD0
	itemQuat     = 0xD1
	itemPressure = 0xF0
	itemIMUSOL   = 0x91

	imusolSize = 76

	// magnetometer items are in µT; samples carry gauss
	microteslaPerGauss = 100.0
)

var (
	ErrChecksum     = errors.New("hi229: frame checksum mismatch")
	ErrFrameTooLong = errors.New("hi229: frame length exceeds buffer")
	ErrTruncated    = errors.New("hi229: truncated data item")
)

// Decoder reassembles CH frames from a byte stream. It is not safe for
// concurrent use.
type Decoder struct {
	buf    [maxRawLen]byte
	n      int
	length int
}

// Feed consumes one byte. It returns ok=true with the decoded sample when the
// byte completes a valid frame that carried IMU data.
func (d *Decoder) Feed(b byte) (s spatial.Sample, ok bool, err error) {
	if d.n == 0 {
		d.buf[0], d.buf[1] = d.buf[1], b
		if d.buf[0] != sync1 || d.buf[1] != sync2 {
			return s, false, nil
		}
		d.n = 2
		return s, false, nil
	}

	d.buf[d.n] = b
	d.n++

	if d.n == headerSize {
		d.length = int(binary.LittleEndian.Uint16(d.buf[2:4]))
		if d.length > maxRawLen-headerSize {
			d.reset()
			return s, false, ErrFrameTooLong
		}
	}
	if d.n < headerSize || d.n < d.length+headerSize {
		return s, false, nil
	}

	// frame aliases buf; it is only read before the next Feed.
	frame := d.buf[:d.length+headerSize]
	d.reset()

	want := binary.LittleEndian.Uint16(frame[4:6])
	crc := crc16(0, frame[:4])
	crc = crc16(crc, frame[headerSize:])
	if crc != want {
		return s, false, ErrChecksum
	}
	return parsePayload(frame[headerSize:])
}

func (d *Decoder) reset() {
	d.n = 0
	d.length = 0
}

func parsePayload(p []byte) (s spatial.Sample, ok bool, err error) {
	for ofs := 0; ofs < len(p); {
		need := 1
		switch p[ofs] {
		case itemID:
			need = 2
		case itemAccRaw, itemGyrRaw, itemMagRaw, itemEuler:
			need = 7
		case itemQuat:
			need = 17
		case itemPressure:
			need = 5
		case itemIMUSOL:
			need = imusolSize
		}
		if ofs+need > len(p) {
			return s, false, ErrTruncated
		}
		item := p[ofs : ofs+need]

		switch item[0] {
		case itemAccRaw:
			s.Acceleration = vector.Float64(i16x3(item[1:])).Scale(1.0 / 1000)
			ok = true
		case itemGyrRaw:
			s.AngularRate = vector.Float64(i16x3(item[1:])).Scale(1.0 / 10)
			ok = true
		case itemMagRaw:
			s.MagneticField = vector.Float64(i16x3(item[1:])).Scale(1.0 / 10 / microteslaPerGauss)
			ok = true
		case itemIMUSOL:
			s.Timestamp = time.Duration(binary.LittleEndian.Uint32(item[8:])) * time.Millisecond
			s.Acceleration = f32x3(item[12:])
			s.AngularRate = f32x3(item[24:])
			s.MagneticField = f32x3(item[36:]).Scale(1.0 / microteslaPerGauss)
			ok = true
		}
		ofs += need
	}
	return s, ok, nil
}

func i16x3(p []byte) vector.Vector3[int16] {
	return vector.New(
		int16(binary.LittleEndian.Uint16(p[0:])),
		int16(binary.LittleEndian.Uint16(p[2:])),
		int16(binary.LittleEndian.Uint16(p[4:])),
	)
}

func f32x3(p []byte) vector.Vector3[float64] {
	return vector.New(
		float64(math.Float32frombits(binary.LittleEndian.Uint32(p[0:]))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(p[4:]))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(p[8:]))),
	)
}

// crc16 is CRC-16/XMODEM (poly 0x1021), continued from crc.
func crc16(crc uint16, src []byte) uint16 {
	for _, b := range src {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// EncodeFrame builds a CH frame around payload.
func EncodeFrame(payload []byte) []byte {
	frame := make([]byte, headerSize+len(payload))
	frame[0], frame[1] = sync1, sync2
	binary.LittleEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[headerSize:], payload)
	crc := crc16(0, frame[:4])
	crc = crc16(crc, payload)
	binary.LittleEndian.PutUint16(frame[4:6], crc)
	return frame
}
