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

package image

import "github.com/ostafen/discproc/pkg/table"

// plugin bundles an Opener/Creator pair under the byte signature(s) a
// container format announces itself with.
type plugin struct {
	name    string
	opener  Opener
	creator Creator
}

// PluginRegistry generalizes the teacher's format.FileRegistry from
// "file-signature -> FileHeader" to "container byte-signature ->
// Opener/Creator": an image container is still identified by a fixed
// header magic, which is exactly what table.PrefixTable was built to
// index.
type PluginRegistry struct {
	table *table.PrefixTable[plugins]
}

type plugins []plugin

// NewPluginRegistry returns an empty registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{table: table.New[plugins]()}
}

// Register adds a plugin under one or more fixed header signatures.
func (r *PluginRegistry) Register(name string, signatures [][]byte, opener Opener, creator Creator) {
	p := plugin{name: name, opener: opener, creator: creator}
	for _, sig := range signatures {
		existing, _ := r.table.Get(sig)
		r.table.Insert(sig, append(existing, p))
	}
}

// Lookup walks the registry against header (the first bytes of a
// container file) and returns the first matching Opener, longest
// signature first.
func (r *PluginRegistry) Lookup(header []byte) (Opener, bool) {
	var found Opener
	var ok bool
	r.table.Walk(header, func(ps plugins) bool {
		if len(ps) == 0 {
			return false
		}
		found, ok = ps[0].opener, true
		return false
	})
	return found, ok
}

// Creator returns the registered Creator for name, if any.
func (r *PluginRegistry) Creator(name string) (Creator, bool) {
	var found Creator
	var ok bool
	r.table.Walk([]byte(name), func(ps plugins) bool {
		for _, p := range ps {
			if p.name == name {
				found, ok = p.creator, true
				return true
			}
		}
		return false
	})
	return found, ok
}
