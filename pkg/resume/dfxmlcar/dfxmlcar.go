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

// Package dfxmlcar is an optional resume.SideCar that renders a
// resume.Snapshot as a DFXML document instead of jsoncar's plain JSON: one
// <fileobject> per bad block and per retry attempt, each carrying a
// <byte_runs> entry that pins it to an LBA, for sites that already feed
// DFXML into a forensic audit pipeline. It is never the default SideCar —
// the XML schema stays an external, swappable concern, exercised here but
// not mandated.
package dfxmlcar

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ostafen/discproc/pkg/dfxml"
	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/sense"
)

func readHeader(f *os.File) (dfxml.DFXMLHeader, error) {
	var hdr dfxml.DFXMLHeader
	err := xml.NewDecoder(bufio.NewReader(f)).Decode(&hdr)
	return hdr, err
}

// attemptToFileObject renders a as one <fileobject>, pinning it to its LBA
// via a single-byte byte_run and packing the rest of its fields into the
// comment attribute dfxml.FileObject carries for exactly this purpose.
func attemptToFileObject(i int, a resume.Attempt) dfxml.FileObject {
	comment := fmt.Sprintf("command=%s;key=%d;asc=%d;ascq=%d;outcome=%s;time=%s",
		escape(a.Command), a.Sense.Key, a.Sense.ASC, a.Sense.ASCQ, escape(a.Outcome),
		a.Time.UTC().Format(time.RFC3339Nano))

	return dfxml.FileObject{
		Filename: fmt.Sprintf("%s%d", attemptPrefix, i),
		FileSize: 1,
		ByteRuns: dfxml.ByteRuns{Runs: []dfxml.ByteRun{{Offset: a.LBA, ImgOffset: a.LBA, Length: 1}}},
		Comment:  comment,
	}
}

func attemptFromFileObject(o dfxml.FileObject) (resume.Attempt, error) {
	a := resume.Attempt{}
	if len(o.ByteRuns.Runs) > 0 {
		a.LBA = o.ByteRuns.Runs[0].Offset
	}

	for _, field := range strings.Split(o.Comment, ";") {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "command":
			a.Command = unescape(kv[1])
		case "key":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil {
				return resume.Attempt{}, fmt.Errorf("dfxmlcar: bad key %q: %w", kv[1], err)
			}
			a.Sense.Key = sense.SenseKey(v)
		case "asc":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil {
				return resume.Attempt{}, fmt.Errorf("dfxmlcar: bad asc %q: %w", kv[1], err)
			}
			a.Sense.ASC = byte(v)
		case "ascq":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil {
				return resume.Attempt{}, fmt.Errorf("dfxmlcar: bad ascq %q: %w", kv[1], err)
			}
			a.Sense.ASCQ = byte(v)
		case "outcome":
			a.Outcome = unescape(kv[1])
		case "time":
			t, err := time.Parse(time.RFC3339Nano, kv[1])
			if err != nil {
				return resume.Attempt{}, fmt.Errorf("dfxmlcar: bad time %q: %w", kv[1], err)
			}
			a.Time = t
		}
	}
	return a, nil
}

// escape/unescape keep ';' and '=' out of the semicolon-delimited comment
// encoding; command and outcome strings are short fixed vocabularies
// (command names, "retry-ok", "skip", ...) that never legitimately
// contain either character, so this is a defensive fallback rather than a
// path exercised in practice.
func escape(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, ";", "%3b")
	s = strings.ReplaceAll(s, "=", "%3d")
	return s
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, "%3d", "=")
	s = strings.ReplaceAll(s, "%3b", ";")
	s = strings.ReplaceAll(s, "%25", "%")
	return s
}

const (
	badBlockPrefix = "bad_block/"
	attemptPrefix  = "attempt/"
)

// SideCar persists a resume.Snapshot as a DFXML document at Path.
type SideCar struct {
	Path        string
	PackageName string // Creator.Package; defaults to "discproc" if empty.
}

// New returns a SideCar that reads and writes path.
func New(path string) *SideCar {
	return &SideCar{Path: path}
}

// Load reconstructs a resume.Snapshot from the DFXML document at Path, or
// resume.ErrNotExist if none has been written yet.
func (c *SideCar) Load() (resume.Snapshot, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return resume.Snapshot{}, resume.ErrNotExist
		}
		return resume.Snapshot{}, fmt.Errorf("dfxmlcar: open %q: %w", c.Path, err)
	}
	defer f.Close()

	hdr, err := readHeader(f)
	if err != nil {
		return resume.Snapshot{}, fmt.Errorf("dfxmlcar: decode header %q: %w", c.Path, err)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return resume.Snapshot{}, err
	}
	objs, err := dfxml.ReadFileObjects(bufio.NewReader(f))
	if err != nil {
		return resume.Snapshot{}, fmt.Errorf("dfxmlcar: decode fileobjects %q: %w", c.Path, err)
	}

	snap := resume.Snapshot{NextBlock: hdr.NextBlock}
	for _, o := range objs {
		switch {
		case len(o.Filename) > len(badBlockPrefix) && o.Filename[:len(badBlockPrefix)] == badBlockPrefix:
			lba, err := strconv.ParseUint(o.Filename[len(badBlockPrefix):], 10, 64)
			if err != nil {
				return resume.Snapshot{}, fmt.Errorf("dfxmlcar: bad bad_block filename %q: %w", o.Filename, err)
			}
			snap.BadBlocks = append(snap.BadBlocks, lba)
		case len(o.Filename) > len(attemptPrefix) && o.Filename[:len(attemptPrefix)] == attemptPrefix:
			a, err := attemptFromFileObject(o)
			if err != nil {
				return resume.Snapshot{}, err
			}
			snap.Tries = append(snap.Tries, a)
		}
	}
	return snap, nil
}

// Save renders snap as a DFXML document and atomically replaces Path.
func (c *SideCar) Save(snap resume.Snapshot) error {
	pkgName := c.PackageName
	if pkgName == "" {
		pkgName = "discproc"
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("dfxmlcar: mkdir: %w", err)
	}

	tmp := c.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("dfxmlcar: create %q: %w", tmp, err)
	}

	// Written directly with encoding/xml rather than through
	// dfxml.DFXMLWriter.WriteHeader: that helper re-encodes the whole
	// DFXMLHeader (itself tagged xml:"dfxml") as a child of the <dfxml>
	// start token it just emitted, nesting a second <dfxml> one level too
	// deep. A plain carved-file report never round-trips its header back
	// through Go's xml.Decoder, so the bug was silent; a resume
	// checkpoint does, so it is fixed here instead of propagated.
	if _, err := f.Write([]byte(xml.Header)); err != nil {
		f.Close()
		return fmt.Errorf("dfxmlcar: write xml header: %w", err)
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")

	start := xml.StartElement{
		Name: xml.Name{Local: "dfxml"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmloutputversion"}, Value: dfxml.XmlOutputVersion}},
	}
	if err := enc.EncodeToken(start); err != nil {
		f.Close()
		return fmt.Errorf("dfxmlcar: write header: %w", err)
	}

	metadata := resumeMetadata()
	creator := dfxml.Creator{Package: pkgName, ExecutionEnvironment: dfxml.GetExecEnv()}
	if err := enc.EncodeElement(metadata, xml.StartElement{Name: xml.Name{Local: "metadata"}}); err != nil {
		f.Close()
		return fmt.Errorf("dfxmlcar: write metadata: %w", err)
	}
	if err := enc.EncodeElement(creator, xml.StartElement{Name: xml.Name{Local: "creator"}}); err != nil {
		f.Close()
		return fmt.Errorf("dfxmlcar: write creator: %w", err)
	}
	if err := enc.EncodeElement(snap.NextBlock, xml.StartElement{Name: xml.Name{Local: "resume_next_block"}}); err != nil {
		f.Close()
		return fmt.Errorf("dfxmlcar: write next block: %w", err)
	}

	for _, lba := range snap.BadBlocks {
		obj := dfxml.FileObject{
			Filename: fmt.Sprintf("%s%d", badBlockPrefix, lba),
			FileSize: 1,
			ByteRuns: dfxml.ByteRuns{Runs: []dfxml.ByteRun{{Offset: lba, ImgOffset: lba, Length: 1}}},
		}
		if err := enc.Encode(obj); err != nil {
			f.Close()
			return fmt.Errorf("dfxmlcar: write bad block %d: %w", lba, err)
		}
	}
	for i, a := range snap.Tries {
		obj := attemptToFileObject(i, a)
		if err := enc.Encode(obj); err != nil {
			f.Close()
			return fmt.Errorf("dfxmlcar: write attempt %d: %w", i, err)
		}
	}

	if err := enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "dfxml"}}); err != nil {
		f.Close()
		return fmt.Errorf("dfxmlcar: close document: %w", err)
	}
	if err := enc.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("dfxmlcar: flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("dfxmlcar: fsync %q: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("dfxmlcar: close %q: %w", tmp, err)
	}

	if err := os.Rename(tmp, c.Path); err != nil {
		return fmt.Errorf("dfxmlcar: rename %q to %q: %w", tmp, c.Path, err)
	}
	return nil
}

func resumeMetadata() dfxml.Metadata {
	m := dfxml.DefaultMetadata
	m.Type = "Resume Checkpoint"
	return m
}

var _ resume.SideCar = (*SideCar)(nil)
