package amsserver

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/function61/aitta/pkg/amsdb"
	"github.com/function61/aitta/pkg/blorm"
	"github.com/function61/gokit/dynversion"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/stopper"
	"github.com/gorilla/mux"
	"go.etcd.io/bbolt"
)

func runServer(logger *log.Logger, stop *stopper.Stopper) error {
	defer stop.Done()

	logl := logex.Levels(logger)

	scf, err := readServerConfigFile()
	if err != nil {
		return err
	}

	db, err := amsdb.Open(scf.DbLocation)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := bootstrapIfNeeded(db, logger); err != nil {
		return err
	}

	storageConf, err := ReadStorageConfigFromEnv()
	if err != nil {
		return err
	}

	metrics := newMetricsController()

	_, destinations, err := BuildRegistries(
		storageConf,
		metrics.WrapProvider,
		logex.Prefix("storage", logger))
	if err != nil {
		return err
	}

	sets := NewSetsService(db, destinations, storageConf.MaxAssetSize, logex.Prefix("sets", logger))
	assets := NewAssetsService(db, sets, logex.Prefix("assets", logger))
	staging := NewStagingCache()

	router := mux.NewRouter()

	defineRestApi(router, sets, assets, staging, logex.Prefix("restapi", logger))

	router.Handle("/metrics", metrics.MetricsHTTPHandler())

	srv := http.Server{
		Addr:    scf.ListenAddr,
		Handler: metrics.WrapHTTPServer(router),
	}

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logl.Error.Fatalf("ListenAndServe: %v", err)
		}
	}()

	logl.Info.Printf(
		"listening on %s, %d destination(s) configured (ver. %s)",
		scf.ListenAddr,
		len(destinations.All()),
		dynversion.Version)

	<-stop.Signal

	if err := srv.Shutdown(context.TODO()); err != nil {
		logl.Error.Fatalf("Shutdown: %v", err)
	}

	return nil
}

// a fresh database file has no buckets yet. probe with a cheap read, and only run
// bootstrap when the probe says the schema is missing (bootstrap refuses to touch a
// non-empty database).
func bootstrapIfNeeded(db *bbolt.DB, logger *log.Logger) error {
	probe := db.View(func(tx *bbolt.Tx) error {
		return amsdb.SetRepository.Each(func(record any) error { return nil }, tx)
	})

	if probe != nil {
		if !errors.Is(probe, blorm.ErrBucketNotFound) {
			return probe
		}

		return amsdb.Bootstrap(db, logex.Prefix("bootstrap", logger))
	}

	return nil
}
