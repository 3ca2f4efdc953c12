package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/diskvfs/blobstore"
	"github.com/hupe1980/diskvfs/blobstore/minio"
	"github.com/hupe1980/diskvfs/blobstore/s3"
	"github.com/hupe1980/diskvfs/codec"
	"github.com/hupe1980/diskvfs/resource"
	"github.com/hupe1980/diskvfs/snapshot"
)

// target is a parsed snapshot location.
//
//	/var/backups/disk          local directory
//	file:///var/backups/disk   local directory
//	s3://bucket/prefix         Amazon S3
//	minio://host:port/bucket/prefix
type target struct {
	Scheme   string
	Endpoint string
	Bucket   string
	Prefix   string
	Path     string
}

func parseTarget(s string) (target, error) {
	if s == "" {
		return target{}, errors.New("empty snapshot target")
	}
	if !strings.Contains(s, "://") {
		return target{Scheme: "file", Path: s}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return target{}, err
	}

	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return target{}, fmt.Errorf("%s: missing path", s)
		}
		return target{Scheme: "file", Path: u.Path}, nil
	case "s3":
		if u.Host == "" {
			return target{}, fmt.Errorf("%s: missing bucket", s)
		}
		return target{Scheme: "s3", Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	case "minio":
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || bucket == "" {
			return target{}, fmt.Errorf("%s: want minio://endpoint/bucket[/prefix]", s)
		}
		return target{Scheme: "minio", Endpoint: u.Host, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
	default:
		return target{}, fmt.Errorf("unsupported snapshot scheme %q", u.Scheme)
	}
}

func (t target) String() string {
	switch t.Scheme {
	case "s3":
		return "s3://" + t.Bucket + "/" + t.Prefix
	case "minio":
		return "minio://" + t.Endpoint + "/" + t.Bucket + "/" + t.Prefix
	default:
		return t.Path
	}
}

func openStore(ctx context.Context, cCtx *cli.Context, t target) (blobstore.Store, error) {
	switch t.Scheme {
	case "s3":
		var optFns []func(*config.LoadOptions) error
		if region := cCtx.String("region"); region != "" {
			optFns = append(optFns, config.WithRegion(region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, err
		}

		store := s3.NewStore(awss3.NewFromConfig(cfg), t.Bucket, t.Prefix)
		if table := cCtx.String("ddb-table"); table != "" {
			return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), table, t.String()), nil
		}
		return store, nil
	case "minio":
		client, err := miniogo.New(t.Endpoint, &miniogo.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: !cCtx.Bool("insecure"),
			Region: cCtx.String("region"),
		})
		if err != nil {
			return nil, err
		}
		return minio.NewStore(client, t.Bucket, t.Prefix), nil
	default:
		return blobstore.NewLocalStore(t.Path), nil
	}
}

// storeFlags returns fresh flag values for a snapshot subcommand.
func storeFlags(extra ...cli.Flag) []cli.Flag {
	return append(extra,
		&cli.StringFlag{Name: "region", Usage: "S3/MinIO region", EnvVars: []string{"AWS_REGION"}},
		&cli.StringFlag{Name: "ddb-table", Usage: "DynamoDB table for atomic CURRENT commits (s3 only)", EnvVars: []string{"DISKVFS_DDB_TABLE"}},
		&cli.BoolFlag{Name: "insecure", Usage: "use plain HTTP for MinIO"},
		&cli.StringFlag{Name: "codec", Usage: "manifest codec: json or go-json", Value: codec.Default.Name()},
		&cli.StringFlag{Name: "rate-limit", Usage: "transfer bandwidth limit, e.g. 20MiB (per second)"},
	)
}

// snapshotOptions builds the options shared by all snapshot subcommands.
func snapshotOptions(cCtx *cli.Context) (func(*snapshot.Options), error) {
	c, ok := codec.ByName(cCtx.String("codec"))
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", cCtx.String("codec"))
	}

	var limit uint64
	if s := cCtx.String("rate-limit"); s != "" {
		var err error
		if limit, err = humanize.ParseBytes(s); err != nil {
			return nil, fmt.Errorf("invalid --rate-limit: %w", err)
		}
	}

	logger, _, err := newLogger(cCtx)
	if err != nil {
		return nil, err
	}

	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: int64(limit)})
	return func(o *snapshot.Options) {
		o.Codec = c
		o.Controller = rc
		o.Logger = logger.Logger
	}, nil
}

// withStore parses the TARGET argument and opens its store.
func withStore(cCtx *cli.Context, fn func(ctx context.Context, store blobstore.Store, opts func(*snapshot.Options)) error) error {
	if cCtx.NArg() < 1 {
		return errors.New("missing TARGET")
	}
	t, err := parseTarget(cCtx.Args().First())
	if err != nil {
		return err
	}

	opts, err := snapshotOptions(cCtx)
	if err != nil {
		return err
	}

	ctx := cCtx.Context
	store, err := openStore(ctx, cCtx, t)
	if err != nil {
		return err
	}
	return fn(ctx, store, opts)
}

var snapshotCommand = &cli.Command{
	Name:  "snapshot",
	Usage: "copy the image to and from object storage",
	Subcommands: []*cli.Command{
		{
			Name:      "push",
			Usage:     "export the image and make it CURRENT",
			ArgsUsage: "TARGET",
			Flags: storeFlags(
				&cli.StringFlag{Name: "compression", Usage: "none, lz4 or zstd", Value: string(snapshot.CompressionZstd)},
			),
			Action: func(cCtx *cli.Context) error {
				comp, err := snapshot.ParseCompression(cCtx.String("compression"))
				if err != nil {
					return err
				}
				return withStore(cCtx, func(ctx context.Context, store blobstore.Store, opts func(*snapshot.Options)) error {
					m, err := snapshot.ExportFile(ctx, cCtx.String("image"), store, opts, func(o *snapshot.Options) {
						o.Compression = comp
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(cCtx.App.Writer, "%s %s -> %s\n", m.ID, humanize.IBytes(uint64(m.Size)), humanize.IBytes(uint64(m.StoredSize)))
					return nil
				})
			},
		},
		{
			Name:      "pull",
			Usage:     "restore a snapshot into --image, which must not exist",
			ArgsUsage: "TARGET",
			Flags: storeFlags(
				&cli.StringFlag{Name: "id", Usage: "snapshot id (default: CURRENT)"},
			),
			Action: func(cCtx *cli.Context) error {
				return withStore(cCtx, func(ctx context.Context, store blobstore.Store, opts func(*snapshot.Options)) error {
					m, err := snapshot.ImportFile(ctx, store, cCtx.String("id"), cCtx.String("image"), opts)
					if err != nil {
						return err
					}
					fmt.Fprintf(cCtx.App.Writer, "%s restored to %s\n", m.ID, cCtx.String("image"))
					return nil
				})
			},
		},
		{
			Name:      "ls",
			Usage:     "list snapshots, oldest first",
			ArgsUsage: "TARGET",
			Flags:     storeFlags(),
			Action: func(cCtx *cli.Context) error {
				return withStore(cCtx, func(ctx context.Context, store blobstore.Store, opts func(*snapshot.Options)) error {
					all, err := snapshot.List(ctx, store, opts)
					if err != nil {
						return err
					}
					current, err := snapshot.Latest(ctx, store, opts)
					if err != nil && !errors.Is(err, snapshot.ErrNoSnapshot) {
						return err
					}

					tw := tabwriter.NewWriter(cCtx.App.Writer, 0, 0, 2, ' ', 0)
					for _, m := range all {
						mark := ""
						if current != nil && current.ID == m.ID {
							mark = "*"
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, m.ID, m.CreatedAt.Format("2006-01-02 15:04:05"),
							humanize.IBytes(uint64(m.Size)), humanize.IBytes(uint64(m.StoredSize)), m.Compression)
					}
					return tw.Flush()
				})
			},
		},
		{
			Name:      "prune",
			Usage:     "delete all but the newest snapshots",
			ArgsUsage: "TARGET",
			Flags: storeFlags(
				&cli.IntFlag{Name: "keep", Usage: "number of snapshots to keep", Value: 3},
			),
			Action: func(cCtx *cli.Context) error {
				return withStore(cCtx, func(ctx context.Context, store blobstore.Store, opts func(*snapshot.Options)) error {
					removed, err := snapshot.Prune(ctx, store, cCtx.Int("keep"), opts)
					for _, id := range removed {
						fmt.Fprintln(cCtx.App.Writer, "removed", id)
					}
					return err
				})
			},
		},
	},
}

