package main

import (
	"context"
	"net/http"

	log "log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sethvargo/go-retry"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/caching"
	"github.com/magiccloud/cqldata/cassandra"
	"github.com/magiccloud/cqldata/config"
	"github.com/magiccloud/cqldata/files"
	"github.com/magiccloud/cqldata/localfs"
	"github.com/magiccloud/cqldata/logging"
	"github.com/magiccloud/cqldata/metrics"
	"github.com/magiccloud/cqldata/mixed"
	"github.com/magiccloud/cqldata/redis"
	"github.com/magiccloud/cqldata/restapi"
	"github.com/magiccloud/cqldata/s3"
	"github.com/magiccloud/cqldata/slots"
)

// application owns the connections the handler depends on.
type application struct {
	Handler http.Handler
	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// connect opens the main cluster connection, retrying transient failures.
func connect(ctx context.Context, pool *cassandra.Pool, cfg cassandra.Config) (*cassandra.Connection, error) {
	var conn *cassandra.Connection
	err := cqldata.Retry(ctx, func(ctx context.Context) error {
		c, err := pool.Connection(cfg)
		if err != nil {
			log.Warn("connecting to cassandra failed", "hosts", cfg.ClusterHosts, "error", err)
			if cqldata.ShouldRetry(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		conn = c
		return nil
	}, nil)
	return conn, err
}

func build(ctx context.Context, cfg config.Config) (*application, error) {
	app := &application{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pool := cassandra.NewPool()
	app.closers = append(app.closers, pool.Close)
	conn, err := connect(ctx, pool, cfg.CassandraConfig())
	if err != nil {
		app.Close()
		return nil, err
	}
	m := metrics.New(reg, func() float64 { return float64(conn.Statements()) })
	conn.SetMetrics(m)
	root := cfg.RootResolver()

	var fileStore cqldata.FileStore = cassandra.NewFileStore(conn)
	if cfg.Files.Backend == config.BackendS3 {
		client := s3.Connect(cfg.S3Config())
		if err := s3.EnsureBucket(ctx, client, cfg.S3.Bucket, cfg.S3.Region); err != nil {
			app.Close()
			return nil, err
		}
		fileStore = s3.NewFileStore(client, cfg.S3.Bucket, m)
	}
	cqlFiles := files.NewFileService(fileStore, root)
	local := localfs.New(cfg.Local.BaseDir, nil)

	router, err := mixed.NewRouter(root, cfg.Routes.Table, cfg.Routes.Fallback)
	if err != nil {
		app.Close()
		return nil, err
	}
	fileService, err := mixed.NewFileService(router, map[string]cqldata.FileService{mixed.CQL: cqlFiles, mixed.Local: local.Files})
	if err != nil {
		app.Close()
		return nil, err
	}
	folderService, err := mixed.NewFolderService(router, map[string]cqldata.FolderService{mixed.CQL: files.NewFolderService(fileStore, root), mixed.Local: local.Folders})
	if err != nil {
		app.Close()
		return nil, err
	}
	streamService, err := mixed.NewStreamService(router, map[string]cqldata.StreamService{mixed.CQL: files.NewStreamService(cqlFiles), mixed.Local: local.Streams})
	if err != nil {
		app.Close()
		return nil, err
	}

	var cacheStore cqldata.CacheStore = cassandra.NewCacheStore(conn)
	if cfg.Cache.Backend == config.BackendRedis {
		rc := redis.OpenConnection(cfg.RedisOptions())
		app.closers = append(app.closers, func() { rc.Close() })
		if err := rc.Ping(ctx); err != nil {
			log.Warn("redis is not reachable yet, cache calls will fail until it is", "address", cfg.Redis.Address, "error", err)
		}
		cacheStore = redis.NewCacheStore(rc, m)
	}

	logger, err := logging.NewLogger(cassandra.NewLogStore(conn), root, cfg.Logging.Tenant, m)
	if err != nil {
		app.Close()
		return nil, err
	}

	sig := slots.NewSignaler()
	slots.Register(sig, slots.NewPoolConnector(pool, cfg.Clusters()))

	var verifier restapi.TokenVerifier
	if cfg.HTTP.Okta.Issuer != "" {
		verifier = restapi.NewOktaVerifier(cfg.HTTP.Okta.Issuer, cfg.HTTP.Okta.Audience, cfg.HTTP.Okta.ClientID)
	} else {
		log.Warn("okta issuer not configured, bearer tokens are not verified and slots are disabled")
	}

	app.Handler = restapi.NewRouter(restapi.Services{
		Files:    fileService,
		Folders:  folderService,
		Streams:  streamService,
		Cache:    caching.NewCache(cacheStore, root, m),
		Logger:   logger,
		LogQuery: logger,
		Signaler: sig,
	}, restapi.Options{
		Verifier:     verifier,
		TenantClaim:  cfg.HTTP.Okta.TenantClaim,
		TenantHeader: cfg.HTTP.TenantHeader,
		Gatherer:     reg,
		Health:       conn.Ping,
	})
	return app, nil
}
