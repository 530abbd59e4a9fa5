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

package bwi

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// readUTF16 decodes n little-endian UTF-16 code units starting at buf[0]
// into a Go string. No third-party UTF-16 codec appears anywhere in the
// retrieval pack for a single fixed-width path field, so this leaf stays
// on the standard library (unicode/utf16, unicode/utf8) — see DESIGN.md.
func readUTF16(buf []byte, n int) (string, error) {
	if len(buf) < n*2 {
		return "", fmt.Errorf("bwi: utf16 buffer too short: need %d, have %d", n*2, len(buf))
	}
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = binary.LittleEndian.Uint16(buf[i*2 : i*2+2])
	}
	runes := utf16.Decode(units)
	out := make([]byte, 0, utf8.UTFMax*len(runes))
	for _, r := range runes {
		var tmp [utf8.UTFMax]byte
		k := utf8.EncodeRune(tmp[:], r)
		out = append(out, tmp[:k]...)
	}
	return string(out), nil
}

// writeUTF16 encodes s as little-endian UTF-16 code units, without a
// trailing NUL; the caller is responsible for the length prefix.
func writeUTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], u)
	}
	return buf
}
