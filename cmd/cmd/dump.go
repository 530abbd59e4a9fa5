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
	"sync/atomic"

	"github.com/ostafen/discproc/internal/disk"
	"github.com/ostafen/discproc/pkg/dump/block"
	"github.com/ostafen/discproc/pkg/dump/tape"
	"github.com/ostafen/discproc/pkg/dump/xbox"
	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/image/bwi"
	"github.com/ostafen/discproc/pkg/pbar"
	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/resume/jsoncar"
	"github.com/ostafen/discproc/pkg/scsidev"
	"github.com/spf13/cobra"
)

func DefineDumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump a device to a bwi image",
	}

	cmd.AddCommand(defineDumpBlockCommand())
	cmd.AddCommand(defineDumpXboxCommand())
	cmd.AddCommand(defineDumpTapeCommand())
	return cmd
}

func addCommonDumpFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "path to the bwi image to create")
	cmd.Flags().String("resume", "", "path to the resume side-car (defaults to <output>.resume.json)")
	cmd.Flags().Bool("force", false, "ignore a resume checkpoint that can no longer be located")
	cmd.Flags().Int("retry-passes", 2, "number of retry passes over bad blocks (alternating forward/reverse for block dumps, forward only for tape)")
	cmd.MarkFlagRequired("output")
}

func resumeManager(cmd *cobra.Command, output string) (*resume.Manager, error) {
	path, _ := cmd.Flags().GetString("resume")
	if path == "" {
		path = output + ".resume.json"
	}
	return resume.Open(jsoncar.New(path))
}

func openDevice(args []string) (*scsidev.SGDevice, string, error) {
	path := disk.NormalizeVolumePath(args[0])
	dev, err := scsidev.OpenSG(path, 0)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	return dev, path, nil
}

func defineDumpBlockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "block <device>",
		Short:        "Dump a disc/block device sector range",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runDumpBlock,
	}
	addCommonDumpFlags(cmd)
	cmd.Flags().Uint32("probe-stride", 64, "initial stride for the binary-halving read probe")
	cmd.Flags().Uint32("skip", 0, "burst skip applied on a batch read failure")
	cmd.Flags().Bool("no-trim", false, "disable the trim pass")
	cmd.Flags().Bool("persistent-retry", false, "toggle the drive's Read-Retry-Count mode page around retries")
	return cmd
}

func runDumpBlock(cmd *cobra.Command, args []string) error {
	dev, _, err := openDevice(args)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx := context.Background()
	res, err := identify.Identify(ctx, dev, identify.Options{})
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	img, err := bwi.Create(output, res.MediaType, image.CreateOptions{}, res.Blocks, res.BlockSize)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer img.Close()

	rm, err := resumeManager(cmd, output)
	if err != nil {
		return err
	}

	probeStride, _ := cmd.Flags().GetUint32("probe-stride")
	skip, _ := cmd.Flags().GetUint32("skip")
	noTrim, _ := cmd.Flags().GetBool("no-trim")
	retryPasses, _ := cmd.Flags().GetInt("retry-passes")
	persistent, _ := cmd.Flags().GetBool("persistent-retry")

	bar := pbar.NewProgressBarState(int64(res.Blocks) * int64(res.BlockSize))

	p := block.New(dev, img, rm, block.Config{
		TotalBlocks:      res.Blocks,
		BlockSize:        res.BlockSize,
		ProbeStartStride: probeStride,
		Skip:             skip,
		NoTrim:           noTrim,
		RetryPasses:      retryPasses,
		Persistent:       persistent,
		OnProgress: func(pr block.Progress) {
			bar.ProcessedBytes = int64(pr.NextBlock) * int64(res.BlockSize)
			bar.BadBlocks = pr.BadBlocks
			bar.Render(false)
		},
	}, &atomic.Bool{})

	err = p.Run(ctx)
	bar.Finish()
	return err
}

func defineDumpXboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "xbox <device>",
		Short:        "Dump an Xbox/Xbox 360 disc (game partition, middle zone, video layer 1)",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runDumpXbox,
	}
	addCommonDumpFlags(cmd)
	return cmd
}

func runDumpXbox(cmd *cobra.Command, args []string) error {
	dev, _, err := openDevice(args)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx := context.Background()
	res, err := identify.Identify(ctx, dev, identify.Options{})
	if err != nil {
		return err
	}

	g, err := xbox.DiscoverGeometry(ctx, dev)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	img, err := bwi.Create(output, res.MediaType, image.CreateOptions{}, g.TotalSize, 2048)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer img.Close()

	rm, err := resumeManager(cmd, output)
	if err != nil {
		return err
	}

	bar := pbar.NewProgressBarState(int64(g.TotalSize) * 2048)

	p := xbox.New(dev, img, rm, 2048, func(pr xbox.Progress) {
		bar.ProcessedBytes = int64(pr.NextBlock) * 2048
		bar.Render(false)
	}, &atomic.Bool{})

	err = p.Run(ctx)
	bar.Finish()
	return err
}

func defineDumpTapeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tape <device>",
		Short:        "Dump a sequential-access tape device",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runDumpTape,
	}
	addCommonDumpFlags(cmd)
	cmd.Flags().Uint64("max-blocks", 0, "upper bound on the number of blocks the tape may hold, for sizing the image buffer (defaults to 8TiB worth of blocks)")
	return cmd
}

func runDumpTape(cmd *cobra.Command, args []string) error {
	dev, _, err := openDevice(args)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx := context.Background()
	res, err := identify.Identify(ctx, dev, identify.Options{})
	if err != nil {
		return err
	}

	blockSize := res.BlockSize
	if blockSize == 0 {
		blockSize = 512
	}

	output, _ := cmd.Flags().GetString("output")
	maxBlocks, _ := cmd.Flags().GetUint64("max-blocks")
	if maxBlocks == 0 {
		const eightTiB = uint64(8) << 40
		maxBlocks = eightTiB / uint64(blockSize)
	}

	// A tape's true block count isn't knowable up front (no READ
	// CAPACITY equivalent for sequential media); the backing buffer is
	// sized to maxBlocks, and the image's header and data file both cover
	// all maxBlocks blocks. The container does not record how many blocks
	// the pipeline actually read.
	img, err := bwi.Create(output, res.MediaType, image.CreateOptions{}, maxBlocks, blockSize)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	tapeImg := newTapeImage(img)
	defer tapeImg.Close()

	rm, err := resumeManager(cmd, output)
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	retryPasses, _ := cmd.Flags().GetInt("retry-passes")

	bar := pbar.NewProgressBarState(0)

	p := tape.New(dev, tapeImg, rm, tape.Config{
		Force:       force,
		RetryPasses: retryPasses,
		OnProgress: func(pr tape.Progress) {
			bar.TotalBytes = int64(pr.TotalBlocks) * int64(blockSize)
			bar.ProcessedBytes = int64(pr.NextBlock) * int64(blockSize)
			bar.BadBlocks = pr.BadBlocks
			bar.Render(false)
		},
	}, &atomic.Bool{})

	err = p.Run(ctx)
	bar.Finish()
	return err
}

