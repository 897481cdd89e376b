package main

import (
	"fmt"
	"io"

	"github.com/koustreak/blobiface/internal/config"
	"github.com/koustreak/blobiface/internal/errs"
	"github.com/koustreak/blobiface/internal/filestore"
	"github.com/koustreak/blobiface/internal/filestore/providers"
	"github.com/koustreak/blobiface/internal/layout"
	"github.com/koustreak/blobiface/internal/logger"
	"github.com/urfave/cli/v2"
)

// session is filled by the app's Before hook and read by every command.
type session struct {
	cfg *config.Config
	log *logger.Logger
}

func productFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "product",
			Usage: "Product family of the file name: s2, s3 or landsat",
		},
		&cli.StringFlag{
			Name:    "aoi",
			Usage:   "Area of interest segment for Sentinel-3 and Landsat layouts",
			EnvVars: []string{"BLOBCTL_AOI"},
		},
	}
}

func newApp(out io.Writer) *cli.App {
	s := &session{}

	return &cli.App{
		Name:      "blobctl",
		Usage:     "Move single files between local disk and a blob storage container",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file",
				EnvVars: []string{"BLOBCTL_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Storage provider: azure, minio, s3 or gcs",
			},
			&cli.StringFlag{
				Name:  "container",
				Usage: "Container (bucket) name",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "json or console",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Replace existing blobs on upload and existing files on download",
			},
		},
		Before: s.load,
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload a local file",
				ArgsUsage: "<local-file> [remote-dir]",
				Flags:     productFlags(),
				Action:    s.upload,
			},
			{
				Name:      "download",
				Usage:     "Download a blob into a local directory",
				ArgsUsage: "<remote-path> [local-dir]",
				Action:    s.download,
			},
			{
				Name:      "prefix",
				Usage:     "Print the remote directory a product file belongs in",
				ArgsUsage: "<product-name>",
				Flags:     productFlags(),
				Action:    s.prefix,
			},
		},
	}
}

// load reads the config and applies the global flag overrides.
func (s *session) load(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return exit(err)
	}

	if c.IsSet("provider") {
		cfg.Storage.Provider = filestore.Provider(c.String("provider"))
	}
	if c.IsSet("container") {
		cfg.Storage.Container = c.String("container")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("overwrite") {
		cfg.Storage.OverwriteUploads = c.Bool("overwrite")
		cfg.Storage.OverwriteDownloads = c.Bool("overwrite")
	}

	s.cfg = cfg
	s.log = cfg.Logger()
	return nil
}

func (s *session) driver(c *cli.Context) (*filestore.Driver, error) {
	drv, err := providers.NewDriver(c.Context, &s.cfg.Storage, filestore.WithLogger(s.log))
	if err != nil {
		return nil, exit(err)
	}
	return drv, nil
}

func (s *session) upload(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return cli.Exit("usage: blobctl upload <local-file> [remote-dir]", 2)
	}
	local, remoteDir := c.Args().Get(0), c.Args().Get(1)

	if c.IsSet("product") {
		if remoteDir != "" {
			return cli.Exit("remote-dir and --product are mutually exclusive", 2)
		}
		dir, err := productPrefix(local, c.String("product"), c.String("aoi"))
		if err != nil {
			return exit(err)
		}
		remoteDir = dir
	}

	drv, err := s.driver(c)
	if err != nil {
		return err
	}
	defer drv.Close()

	res, err := drv.Upload(c.Context, local, remoteDir)
	if err != nil {
		return exit(err)
	}
	printResult(c.App.Writer, "uploaded", res)
	return nil
}

func (s *session) download(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return cli.Exit("usage: blobctl download <remote-path> [local-dir]", 2)
	}

	drv, err := s.driver(c)
	if err != nil {
		return err
	}
	defer drv.Close()

	res, err := drv.Download(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return exit(err)
	}
	printResult(c.App.Writer, "downloaded", res)
	return nil
}

func (s *session) prefix(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: blobctl prefix --product <type> <product-name>", 2)
	}
	if !c.IsSet("product") {
		return cli.Exit("--product is required", 2)
	}

	dir, err := productPrefix(c.Args().First(), c.String("product"), c.String("aoi"))
	if err != nil {
		return exit(err)
	}
	fmt.Fprintln(c.App.Writer, dir)
	return nil
}

func productPrefix(name, product, aoi string) (string, error) {
	pt, err := layout.ParseProductType(product)
	if err != nil {
		return "", err
	}
	return layout.Prefix(name, pt, aoi)
}

func printResult(w io.Writer, verb string, res *filestore.Result) {
	if res.Skipped {
		fmt.Fprintf(w, "skipped %s (exists)\n", res.LocalPath)
		return
	}
	fmt.Fprintf(w, "%s %s -> %s (%d bytes)\n", verb, res.LocalPath, res.Key, res.Bytes)
}

// exit maps an error kind to a process exit code.
func exit(err error) error {
	code := 1
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput, errs.ErrKindUnsupported:
		code = 2
	case errs.ErrKindNotFound:
		code = 3
	case errs.ErrKindConnectionFailed, errs.ErrKindTimeout:
		code = 4
	}
	return cli.Exit(err.Error(), code)
}
