// Command vfsctl inspects and modifies diskvfs images.
//
//	vfsctl --image disk.img --blocks 4096 mkfs
//	vfsctl --image disk.img mkdir -p /etc/app
//	vfsctl --image disk.img put ./config.yaml /etc/app/config.yaml
//	vfsctl --image disk.img ls -l /etc/app
//	vfsctl --image disk.img snapshot push s3://bucket/images/disk
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/diskvfs"
	"github.com/hupe1980/diskvfs/blockstore"
	"github.com/hupe1980/diskvfs/internal/conv"
	"github.com/hupe1980/diskvfs/internal/layout"
)

func main() {
	if err := newApp(os.Stdout, os.Stdin).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vfsctl:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer, in io.Reader) *cli.App {
	return &cli.App{
		Name:   "vfsctl",
		Usage:  "inspect and modify diskvfs images",
		Writer: out,
		Reader: in,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "image",
				Aliases:  []string{"i"},
				Usage:    "path of the disk image",
				EnvVars:  []string{"DISKVFS_IMAGE"},
				Required: true,
			},
			&cli.UintFlag{
				Name:    "blocks",
				Usage:   "number of blocks in the image",
				EnvVars: []string{"DISKVFS_BLOCKS"},
				Value:   1024,
			},
			&cli.UintFlag{
				Name:    "block-size",
				Usage:   "block size in bytes (power of two, 512-65536)",
				EnvVars: []string{"DISKVFS_BLOCK_SIZE"},
				Value:   1024,
			},
			&cli.StringFlag{
				Name:    "device",
				Usage:   "image access method: file or mmap",
				EnvVars: []string{"DISKVFS_DEVICE"},
				Value:   "file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"DISKVFS_LOG_LEVEL"},
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "text or json",
				EnvVars: []string{"DISKVFS_LOG_FORMAT"},
				Value:   "text",
			},
		},
		Commands: []*cli.Command{
			mkfsCommand,
			mkdirCommand,
			touchCommand,
			putCommand,
			catCommand,
			lsCommand,
			rmCommand,
			statCommand,
			statsCommand,
			fsckCommand,
			snapshotCommand,
		},
	}
}

func newLogger(cCtx *cli.Context) (*diskvfs.Logger, slog.Level, error) {
	level, err := diskvfs.ParseLevel(cCtx.String("log-level"))
	if err != nil {
		return nil, 0, fmt.Errorf("invalid --log-level: %w", err)
	}

	switch cCtx.String("log-format") {
	case "text":
		return diskvfs.NewTextLogger(level), level, nil
	case "json":
		return diskvfs.NewJSONLogger(level), level, nil
	default:
		return nil, 0, fmt.Errorf("invalid --log-format %q", cCtx.String("log-format"))
	}
}

// mount opens the image named by the global flags.
func mount(cCtx *cli.Context, extra ...diskvfs.Option) (*diskvfs.FS, error) {
	logger, _, err := newLogger(cCtx)
	if err != nil {
		return nil, err
	}
	device, err := blockstore.ParseDeviceKind(cCtx.String("device"))
	if err != nil {
		return nil, err
	}

	path := cCtx.String("image")
	blockSize, err := uintFlag(cCtx, "block-size")
	if err != nil {
		return nil, err
	}
	blocks, err := uintFlag(cCtx, "blocks")
	if err != nil {
		return nil, err
	}

	// An existing image describes itself unless overridden.
	if geo, err := probe(path); err == nil {
		if !cCtx.IsSet("block-size") {
			blockSize = geo.BlockSize
		}
		if !cCtx.IsSet("blocks") {
			blocks = geo.BlockCount
		}
	}

	opts := append([]diskvfs.Option{
		diskvfs.WithBlockSize(blockSize),
		diskvfs.WithDevice(device),
		diskvfs.WithLogger(logger.WithImage(path)),
	}, extra...)

	return diskvfs.Init(path, blocks, opts...)
}

func uintFlag(cCtx *cli.Context, name string) (uint32, error) {
	v, err := conv.UintToUint32(cCtx.Uint(name))
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return v, nil
}

// probe decodes the control block of an existing image.
func probe(path string) (layout.Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return layout.Geometry{}, err
	}
	defer f.Close()

	head := make([]byte, layout.MinBlockSize)
	if _, err := io.ReadFull(f, head); err != nil {
		return layout.Geometry{}, err
	}
	return layout.Decode(head)
}

// withFS mounts the image, runs fn and unmounts, reporting both errors.
func withFS(cCtx *cli.Context, fn func(fs *diskvfs.FS) error) error {
	fs, err := mount(cCtx)
	if err != nil {
		return err
	}

	var result error
	if err := fn(fs); err != nil {
		result = multierror.Append(result, err)
	}
	if err := fs.UnmountForce(); err != nil {
		result = multierror.Append(result, err)
	}
	if merr, ok := result.(*multierror.Error); ok && merr.Len() == 1 {
		return merr.Errors[0]
	}
	return result
}
