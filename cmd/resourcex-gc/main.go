// Command resourcex-gc runs a one-shot garbage collection pass over a
// registry's blob store, deleting blobs no longer referenced by any
// manifest.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/resourcex/resourcex/cas"
	"github.com/resourcex/resourcex/configuration"
	"github.com/resourcex/resourcex/storagedriver"
	"github.com/resourcex/resourcex/storagedriver/filesystem"
	"github.com/resourcex/resourcex/storagedriver/inmemory"
	"github.com/resourcex/resourcex/store/blob"
	"github.com/resourcex/resourcex/store/manifest"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		fatalf("configuration path unspecified")
	}

	config, err := configuration.ParseFile(flag.Arg(0))
	if err != nil {
		fatalf("configuration error: %v", err)
	}

	driver, err := newStorageDriver(config.Storage)
	if err != nil {
		fatalf("storage error: %v", err)
	}

	registry := cas.New(blob.New(driver), manifest.New(driver))

	deleted, err := registry.GC(context.Background())
	if err != nil {
		logrus.Errorf("garbage collection finished with errors: %v", err)
	}
	fmt.Printf("deleted %d unreferenced blobs\n", deleted)
	if err != nil {
		os.Exit(1)
	}
}

func newStorageDriver(cfg configuration.Storage) (storagedriver.StorageDriver, error) {
	switch cfg.Driver {
	case "filesystem":
		return filesystem.New(cfg.RootDirectory), nil
	case "inmemory":
		return inmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:", os.Args[0], "<config>")
	flag.PrintDefaults()
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	usage()
	os.Exit(1)
}
