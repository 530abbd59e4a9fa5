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
	"context"
	"fmt"

	"github.com/ostafen/discproc/internal/disk"
	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/scsidev"
	"github.com/spf13/cobra"
)

func DefineIdentifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "identify <device>",
		Short:        "Run the media identification cascade against a device",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunIdentify,
	}

	cmd.Flags().Bool("removable", false, "the device is reported removable by the OS")
	cmd.Flags().Bool("usb", false, "the device is attached over USB")
	cmd.Flags().String("manufacturer", "", "INQUIRY vendor string, used by the tape density lookup")
	cmd.Flags().String("model", "", "INQUIRY product string, used by the tape density lookup")
	return cmd
}

func RunIdentify(cmd *cobra.Command, args []string) error {
	path := disk.NormalizeVolumePath(args[0])

	dev, err := scsidev.OpenSG(path, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer dev.Close()

	removable, _ := cmd.Flags().GetBool("removable")
	usb, _ := cmd.Flags().GetBool("usb")
	manufacturer, _ := cmd.Flags().GetString("manufacturer")
	model, _ := cmd.Flags().GetString("model")

	res, err := identify.Identify(context.Background(), dev, identify.Options{
		Removable:    removable,
		USB:          usb,
		Manufacturer: manufacturer,
		Model:        model,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Media type:  %s\n", res.MediaType)
	fmt.Printf("Recognized:  %t\n", res.Recognized)
	fmt.Printf("Blocks:      %d\n", res.Blocks)
	fmt.Printf("Block size:  %d\n", res.BlockSize)
	for kind, data := range res.Tags {
		fmt.Printf("Tag %d:       %d bytes\n", kind, len(data))
	}
	return nil
}
