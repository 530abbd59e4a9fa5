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
	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/image"
)

// PluginName is this format's entry in a image.PluginRegistry.
const PluginName = "bwi"

// Signature is the container's fixed 8-byte magic, used to register this
// plugin against a image.PluginRegistry.
var Signature = []byte(signature)

// plugin adapts the package's Open/Create functions to image.Opener and
// image.Creator.
type plugin struct{}

// Plugin is the shared image.Opener/image.Creator for this format.
var Plugin plugin

func (plugin) Open(name string, filter image.Filter) (image.Readable, error) {
	return Open(name, filter, Options{})
}

func (plugin) Create(path string, mediaType identify.MediaType, opts image.CreateOptions, blocks uint64, blockSize uint32) (image.Writable, error) {
	return Create(path, mediaType, opts, blocks, blockSize)
}

// Register adds this format to reg under PluginName/Signature.
func Register(reg *image.PluginRegistry) {
	reg.Register(PluginName, [][]byte{Signature}, Plugin, Plugin)
}
