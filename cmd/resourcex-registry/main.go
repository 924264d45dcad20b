// Command resourcex-registry serves the registry HTTP protocol over a
// configured storage backend.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	apiv1 "github.com/resourcex/resourcex/api/v1"
	"github.com/resourcex/resourcex/cas"
	"github.com/resourcex/resourcex/configuration"
	"github.com/resourcex/resourcex/metrics"
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

	configureLogging(config)

	driver, err := newStorageDriver(config.Storage)
	if err != nil {
		fatalf("storage error: %v", err)
	}

	registry := cas.New(blob.New(driver), manifest.New(driver))
	router := apiv1.NewRouter(&apiv1.Handler{CAS: registry})
	router.Handle("/metrics", metrics.Handler())

	logrus.Infof("listening on %s", config.HTTP.Addr)
	if err := http.ListenAndServe(config.HTTP.Addr, router); err != nil {
		logrus.Fatalln(err)
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

func configureLogging(config *configuration.Configuration) {
	if config.Log.Level != "" {
		level, err := logrus.ParseLevel(config.Log.Level)
		if err != nil {
			logrus.Warnf("invalid log level %q, using info", config.Log.Level)
			level = logrus.InfoLevel
		}
		logrus.SetLevel(level)
	}
	switch config.Log.Formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{})
	default:
		logrus.Warnf("unsupported log formatter %q, using text", config.Log.Formatter)
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
