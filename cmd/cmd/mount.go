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
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ostafen/discproc/internal/fuse"
	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/image/bwi"
	"github.com/ostafen/discproc/pkg/image/filter"
	"github.com/spf13/cobra"
)

func DefineMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mount <image_path>",
		Short:        "Mount a dumped image over FUSE",
		Long: `The 'mount' command recognizes the image's container format from its header
signature, opens it through the matching plugin, and exposes its sector data
as a single read-only file under the mountpoint.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunMount,
	}

	cmd.Flags().StringP("mountpoint", "m", "", "Absolute path to the directory where the filesystem will be mounted. If not specified, a default will be generated.")
	return cmd
}

// imageRegistry is the one image.PluginRegistry this binary builds,
// shared by every command that needs to recognize an existing
// container rather than create one outright.
func imageRegistry() *image.PluginRegistry {
	reg := image.NewPluginRegistry()
	bwi.Register(reg)
	return reg
}

func RunMount(cmd *cobra.Command, args []string) error {
	path := args[0]
	dir, base := filepath.Split(path)

	header, err := readHeader(path)
	if err != nil {
		return err
	}

	opener, ok := imageRegistry().Lookup(header)
	if !ok {
		return fmt.Errorf("mount: %s: unrecognized image format", path)
	}

	img, err := opener.Open(base, filter.New(dir))
	if err != nil {
		return fmt.Errorf("mount: open %s: %w", path, err)
	}
	defer img.Close()

	mountpoint, _ := cmd.Flags().GetString("mountpoint")
	if mountpoint == "" {
		mountpoint = getMountpoint(path)
	}

	size := img.Sectors() * uint64(img.SectorSize())
	entries := []fuse.FileEntry{{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)) + ".img",
		Offset: 0,
		Size:   size,
	}}

	return fuse.Mount(mountpoint, newSectorReaderAt(img), entries)
}

// getMountpoint generates a mountpoint name from an image path by
// stripping the extension. If the extension is empty, "_mnt" is added.
func getMountpoint(imagePath string) string {
	baseName := filepath.Base(imagePath)
	ext := filepath.Ext(baseName)
	baseName = strings.TrimSuffix(baseName, ext)
	mountpoint := baseName
	if ext == "" {
		mountpoint += "_mnt"
	}
	return mountpoint
}

// readHeader reads enough of path's leading bytes for the plugin
// registry's signature match; a bwi container's fixed magic lives in
// its first few bytes, same as the file-header signatures the teacher's
// format registry matched against.
func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if n == 0 {
		return nil, err
	}
	return buf[:n], nil
}
