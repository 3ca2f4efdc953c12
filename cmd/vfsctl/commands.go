package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/diskvfs"
	"github.com/hupe1980/diskvfs/stats"
)

var mkfsCommand = &cli.Command{
	Name:  "mkfs",
	Usage: "create and format a new image",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "inodes", Usage: "inode table size (default: blocks/4)"},
		&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "replace an existing image"},
	},
	Action: mkfs,
}

func mkfs(cCtx *cli.Context) error {
	path := cCtx.String("image")
	if _, err := os.Stat(path); err == nil {
		if !cCtx.Bool("force") {
			return fmt.Errorf("%s already exists (use --force to replace it)", path)
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}

	inodes, err := uintFlag(cCtx, "inodes")
	if err != nil {
		return err
	}
	fs, err := mount(cCtx, diskvfs.WithFormat(true), diskvfs.WithInodeCount(inodes))
	if err != nil {
		return err
	}
	u, err := fs.Usage()
	if err != nil {
		_ = fs.UnmountForce()
		return err
	}

	fmt.Fprintf(cCtx.App.Writer, "%s: %d blocks of %s, %d data blocks (%s), %d inodes, max file size %s\n",
		path, u.Blocks, humanize.IBytes(uint64(u.BlockSize)), u.DataBlocks,
		humanize.IBytes(uint64(u.DataBlocks)*uint64(u.BlockSize)), u.Inodes, humanize.IBytes(u.MaxFileSize))
	return fs.Unmount()
}

var mkdirCommand = &cli.Command{
	Name:      "mkdir",
	Usage:     "create directories",
	ArgsUsage: "PATH...",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "parents", Aliases: []string{"p"}, Usage: "create missing parents, ignore existing"},
	},
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() == 0 {
			return errors.New("mkdir: missing PATH")
		}
		return withFS(cCtx, func(fs *diskvfs.FS) error {
			for _, arg := range cCtx.Args().Slice() {
				path := diskvfs.SplitPath(arg)
				if !cCtx.Bool("parents") {
					if err := fs.Creat(path, true); err != nil {
						return err
					}
					continue
				}
				for i := range path {
					err := fs.Creat(path[:i+1], true)
					if err != nil && !errors.Is(err, diskvfs.ErrAlreadyExists) {
						return err
					}
				}
			}
			return nil
		})
	},
}

var touchCommand = &cli.Command{
	Name:      "touch",
	Usage:     "create empty files",
	ArgsUsage: "PATH...",
	Action: func(cCtx *cli.Context) error {
		return withFS(cCtx, func(fs *diskvfs.FS) error {
			for _, arg := range cCtx.Args().Slice() {
				path := diskvfs.SplitPath(arg)
				err := fs.Creat(path, false)
				if errors.Is(err, diskvfs.ErrAlreadyExists) {
					st, serr := fs.Stat(path)
					if serr == nil && !st.IsDir() {
						continue
					}
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var putCommand = &cli.Command{
	Name:      "put",
	Usage:     "copy a host file (or - for stdin) into the image, replacing DST",
	ArgsUsage: "SRC DST",
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() != 2 {
			return errors.New("put: want SRC and DST")
		}

		var src io.Reader = cCtx.App.Reader
		if name := cCtx.Args().Get(0); name != "-" {
			f, err := os.Open(name)
			if err != nil {
				return err
			}
			defer f.Close()
			src = f
		}

		return withFS(cCtx, func(fs *diskvfs.FS) error {
			dst := diskvfs.SplitPath(cCtx.Args().Get(1))
			if err := fs.Unlink(dst); err != nil && !errors.Is(err, diskvfs.ErrNotFound) {
				return err
			}
			if err := fs.Creat(dst, false); err != nil {
				return err
			}

			f, err := fs.OpenFile(dst)
			if err != nil {
				return err
			}
			defer f.Close()

			_, err = io.Copy(f, src)
			return err
		})
	},
}

var catCommand = &cli.Command{
	Name:      "cat",
	Usage:     "print file contents",
	ArgsUsage: "PATH...",
	Action: func(cCtx *cli.Context) error {
		return withFS(cCtx, func(fs *diskvfs.FS) error {
			for _, arg := range cCtx.Args().Slice() {
				f, err := fs.OpenFile(diskvfs.SplitPath(arg))
				if err != nil {
					return err
				}
				_, err = io.Copy(cCtx.App.Writer, f)
				cerr := f.Close()
				if err != nil {
					return err
				}
				if cerr != nil {
					return cerr
				}
			}
			return nil
		})
	},
}

var lsCommand = &cli.Command{
	Name:      "ls",
	Usage:     "list a directory",
	ArgsUsage: "[PATH]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "long", Aliases: []string{"l"}, Usage: "show inode, size, blocks and modification time"},
	},
	Action: func(cCtx *cli.Context) error {
		return withFS(cCtx, func(fs *diskvfs.FS) error {
			path := diskvfs.SplitPath(cCtx.Args().First())

			st, err := fs.Stat(path)
			if err != nil {
				return err
			}
			entries := []diskvfs.Stat{st}
			if st.IsDir() {
				if entries, err = list(fs, path); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(cCtx.App.Writer, 0, 0, 2, ' ', 0)
			for _, e := range entries {
				name := e.Name
				if e.IsDir() {
					name += "/"
				}
				if cCtx.Bool("long") {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", e.Inode, e.Type, humanize.IBytes(e.Size),
						e.Blocks, e.Modified.Format("2006-01-02 15:04:05"), name)
				} else {
					fmt.Fprintln(tw, name)
				}
			}
			return tw.Flush()
		})
	},
}

// list walks a directory with StatChild/StatNext.
func list(fs *diskvfs.FS, path []string) ([]diskvfs.Stat, error) {
	fd, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer fs.Close(fd)

	var out []diskvfs.Stat
	if _, err := fs.StatChild(fd); err != nil {
		if errors.Is(err, diskvfs.ErrEndOfDirectory) {
			return out, nil
		}
		return nil, err
	}
	for {
		st, err := fs.StatNext(fd)
		if errors.Is(err, diskvfs.ErrEndOfDirectory) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
}

var rmCommand = &cli.Command{
	Name:      "rm",
	Usage:     "remove files or directories",
	ArgsUsage: "PATH...",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "remove directories and their contents"},
	},
	Action: func(cCtx *cli.Context) error {
		return withFS(cCtx, func(fs *diskvfs.FS) error {
			for _, arg := range cCtx.Args().Slice() {
				path := diskvfs.SplitPath(arg)
				var err error
				if cCtx.Bool("recursive") {
					err = removeAll(fs, path)
				} else {
					err = fs.Unlink(path)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func removeAll(fs *diskvfs.FS, path []string) error {
	st, err := fs.Stat(path)
	if err != nil {
		return err
	}
	if st.IsDir() {
		children, err := fs.ReadDir(path)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := removeAll(fs, append(path[:len(path):len(path)], c.Name)); err != nil {
				return err
			}
		}
	}
	if len(path) == 0 {
		return nil
	}
	return fs.Unlink(path)
}

var statCommand = &cli.Command{
	Name:      "stat",
	Usage:     "show metadata of a file or directory",
	ArgsUsage: "PATH",
	Action: func(cCtx *cli.Context) error {
		return withFS(cCtx, func(fs *diskvfs.FS) error {
			st, err := fs.Stat(diskvfs.SplitPath(cCtx.Args().First()))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cCtx.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "path\t%s\n", diskvfs.JoinPath(diskvfs.SplitPath(cCtx.Args().First())))
			fmt.Fprintf(tw, "type\t%s\n", st.Type)
			fmt.Fprintf(tw, "inode\t%d\n", st.Inode)
			fmt.Fprintf(tw, "size\t%d (%s)\n", st.Size, humanize.IBytes(st.Size))
			fmt.Fprintf(tw, "blocks\t%d\n", st.Blocks)
			fmt.Fprintf(tw, "created\t%s\n", st.Created.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(tw, "modified\t%s\n", st.Modified.Format("2006-01-02 15:04:05 MST"))
			return tw.Flush()
		})
	},
}

var statsCommand = &cli.Command{
	Name:  "stats",
	Usage: "show block I/O counters and capacity",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "prometheus", Usage: "print in the Prometheus text format"},
	},
	Action: func(cCtx *cli.Context) error {
		return withFS(cCtx, func(fs *diskvfs.FS) error {
			if cCtx.Bool("prometheus") {
				reg := prometheus.NewRegistry()
				if err := reg.Register(stats.NewCollector(fs, fs.Usage, prometheus.Labels{"image": fs.Path()})); err != nil {
					return err
				}
				return stats.WriteText(cCtx.App.Writer, reg)
			}

			u, err := fs.Usage()
			if err != nil {
				return err
			}
			if err := stats.Report(cCtx.App.Writer, fs); err != nil {
				return err
			}
			fmt.Fprintf(cCtx.App.Writer, "free blocks   %d/%d\nfree inodes   %d/%d\n",
				u.FreeBlocks, u.DataBlocks, u.FreeInodes, u.Inodes)
			return nil
		})
	},
}

var fsckCommand = &cli.Command{
	Name:  "fsck",
	Usage: "check image consistency",
	Action: func(cCtx *cli.Context) error {
		return withFS(cCtx, func(fs *diskvfs.FS) error {
			report, err := fs.Check()
			if err != nil {
				return err
			}
			fmt.Fprintf(cCtx.App.Writer, "%d directories, %d files\n", report.Directories, report.Files)
			if err := report.Err(); err != nil {
				return err
			}
			fmt.Fprintln(cCtx.App.Writer, "clean")
			return nil
		})
	},
}
