// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package sense decodes SCSI sense buffers (fixed and descriptor format)
// into a fixed SenseKey taxonomy. No dump pipeline or image reader parses
// raw sense bytes directly; everything goes through Decode.
package sense

import "fmt"

// SenseKey is the SCSI sense key, narrowed to the values the core branches
// on (§4.2).
type SenseKey uint8

const (
	NoSense SenseKey = iota
	Recovered
	NotReady
	MediumError
	HardwareError
	IllegalRequest
	UnitAttention
	DataProtect
	BlankCheck
	VendorSpecific
	CopyAborted
	Aborted
	VolumeOverflow
	Miscompare
)

func (k SenseKey) String() string {
	switch k {
	case NoSense:
		return "NO SENSE"
	case Recovered:
		return "RECOVERED ERROR"
	case NotReady:
		return "NOT READY"
	case MediumError:
		return "MEDIUM ERROR"
	case HardwareError:
		return "HARDWARE ERROR"
	case IllegalRequest:
		return "ILLEGAL REQUEST"
	case UnitAttention:
		return "UNIT ATTENTION"
	case DataProtect:
		return "DATA PROTECT"
	case BlankCheck:
		return "BLANK CHECK"
	case VendorSpecific:
		return "VENDOR SPECIFIC"
	case CopyAborted:
		return "COPY ABORTED"
	case Aborted:
		return "ABORTED COMMAND"
	case VolumeOverflow:
		return "VOLUME OVERFLOW"
	case Miscompare:
		return "MISCOMPARE"
	default:
		return "UNKNOWN"
	}
}

// Sense is the decoded projection of a fixed or descriptor format sense
// buffer. Decoding a descriptor-format buffer maps its fields onto the
// same fields a fixed-format buffer would carry (§4.2, §6).
type Sense struct {
	Key  SenseKey
	ASC  byte
	ASCQ byte

	// Info carries the INFORMATION field; InfoValid reports whether the
	// buffer actually set the VALID bit for it. Tape block-size discovery
	// (§4.9) depends on this distinction: an absent INFORMATION field must
	// not be mistaken for a zero one.
	Info      uint32
	InfoValid bool

	ILI      bool
	EOM      bool
	Filemark bool

	Raw []byte
}

// Decode parses buf as either a fixed-format (response code 0x70/0x71) or
// descriptor-format (0x72/0x73) sense buffer. Decode is a pure function of
// its input: calling it twice on identical bytes yields an identical Sense
// value (§8, sense classification idempotence).
func Decode(buf []byte) Sense {
	if len(buf) == 0 {
		return Sense{}
	}

	responseCode := buf[0] & 0x7f
	switch responseCode {
	case 0x70, 0x71:
		return decodeFixed(buf)
	case 0x72, 0x73:
		return decodeDescriptor(buf)
	default:
		return Sense{Raw: buf}
	}
}

func decodeFixed(buf []byte) Sense {
	s := Sense{Raw: buf}
	if len(buf) < 13 {
		return s
	}

	flags := buf[2]
	s.Key = SenseKey(flags & 0x0f)
	s.ILI = flags&0x20 != 0
	s.EOM = flags&0x40 != 0
	s.Filemark = flags&0x80 != 0

	if len(buf) >= 4 {
		s.InfoValid = buf[0]&0x80 != 0
		s.Info = uint32(buf[3])<<24 | uint32(buf[4])<<16 | uint32(buf[5])<<8 | uint32(buf[6])
	}

	if len(buf) >= 13 {
		s.ASC = buf[12]
	}
	if len(buf) >= 14 {
		s.ASCQ = buf[13]
	}
	return s
}

func decodeDescriptor(buf []byte) Sense {
	s := Sense{Raw: buf}
	if len(buf) < 8 {
		return s
	}

	s.Key = SenseKey(buf[1] & 0x0f)
	s.ASC = buf[2]
	s.ASCQ = buf[3]

	additionalLen := int(buf[7])
	descriptors := buf[8:]
	if len(descriptors) > additionalLen {
		descriptors = descriptors[:additionalLen]
	}

	for len(descriptors) >= 2 {
		descType := descriptors[0]
		descLen := int(descriptors[1])
		if 2+descLen > len(descriptors) {
			break
		}
		payload := descriptors[2 : 2+descLen]

		switch descType {
		case 0x00: // Information descriptor
			if len(payload) >= 8 {
				s.InfoValid = true
				s.Info = uint32(payload[4])<<24 | uint32(payload[5])<<16 | uint32(payload[6])<<8 | uint32(payload[7])
			}
		case 0x02: // Sense key specific / ILI-EOM-filemark descriptor (block commands)
			if len(payload) >= 3 {
				s.ILI = payload[0]&0x20 != 0
				s.EOM = payload[0]&0x40 != 0
				s.Filemark = payload[0]&0x80 != 0
			}
		}
		descriptors = descriptors[2+descLen:]
	}
	return s
}

// Triple formats (key, asc, ascq) for logging, matching the teacher's
// plain fmt.Errorf error-message style.
func (s Sense) Triple() string {
	return fmt.Sprintf("%s (ASC=%#02x ASCQ=%#02x)", s.Key, s.ASC, s.ASCQ)
}
