package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/sos-beacon/internal/api/grpc/sos"
	"github.com/oshokin/sos-beacon/internal/api/rest"
	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/notify/console"
	"github.com/oshokin/sos-beacon/internal/notify/email"
	"github.com/oshokin/sos-beacon/internal/notify/natsbus"
	"github.com/oshokin/sos-beacon/internal/repository/contacts"
	"github.com/oshokin/sos-beacon/internal/repository/location"
	"github.com/oshokin/sos-beacon/internal/service/dispatcher"
)

// Options controls the sos-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// HTTPAddress provides an optional listen address override for the HTTP API.
	HTTPAddress string
	// Migrate applies the embedded schema when the postgres backend is used.
	Migrate bool
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the HTTP and gRPC servers and blocks until the context is
// cancelled or one of them fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "sos-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	httpAddress := settings.HTTPAddress
	if opts.HTTPAddress != "" {
		httpAddress = opts.HTTPAddress
	}

	var closers closeStack
	defer closers.closeAll(ctx)

	directory, err := openDirectory(ctx, settings, opts.Migrate, &closers)
	if err != nil {
		return err
	}

	if r, ok := directory.(reloader); ok {
		hangup := make(chan os.Signal, 1)
		signal.Notify(hangup, syscall.SIGHUP)

		reloadCtx, stopReload := context.WithCancel(ctx)

		closers.push(func() error {
			signal.Stop(hangup)
			stopReload()

			return nil
		})

		go watchReload(reloadCtx, r, hangup)
	}

	transport, err := openTransport(settings, &closers)
	if err != nil {
		return err
	}

	locations, err := openLocationStore(ctx, settings, &closers)
	if err != nil {
		return err
	}

	alertDispatcher := dispatcher.New(directory, transport,
		dispatcher.WithConcurrency(settings.Dispatch.Concurrency),
		dispatcher.WithSendTimeout(settings.Dispatch.SendTimeout),
	)

	svc := newService(alertDispatcher, directory, locations)

	return serve(ctx, svc, listenAddress, httpAddress)
}

// serve runs both APIs until ctx is done and then stops them gracefully.
func serve(ctx context.Context, svc *service, listenAddress, httpAddress string) error {
	lc := net.ListenConfig{}

	grpcListener, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	httpListener, err := lc.Listen(ctx, "tcp", httpAddress)
	if err != nil {
		_ = grpcListener.Close() //nolint:errcheck // Already failing.
		return fmt.Errorf("listen on %s: %w", httpAddress, err)
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(api.LoggingInterceptor(ctx)))
	api.Register(grpcServer, api.NewServer(svc))

	app := rest.NewApp(svc)

	logger.InfoKV(ctx, "SOS server listening", "grpc_address", listenAddress, "http_address", httpAddress)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if serveErr := grpcServer.Serve(grpcListener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", serveErr)
		}

		return nil
	})

	group.Go(func() error {
		if serveErr := app.Listener(httpListener); serveErr != nil {
			return fmt.Errorf("serve HTTP: %w", serveErr)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down servers")

		grpcServer.GracefulStop()

		if shutdownErr := app.Shutdown(); shutdownErr != nil {
			return fmt.Errorf("shutdown HTTP: %w", shutdownErr)
		}

		// Unblocks Listener when shutdown raced its start.
		_ = httpListener.Close() //nolint:errcheck // Usually already closed.

		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Servers stopped")

	return nil
}

// openDirectory builds the configured contact directory.
func openDirectory(ctx context.Context, settings *config.Config, migrate bool, closers *closeStack) (dispatcher.Directory, error) {
	switch settings.Contacts.Backend {
	case config.BackendPostgres:
		directory, err := contacts.OpenPostgres(ctx, settings.Contacts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open contact database: %w", err)
		}

		closers.push(func() error {
			directory.Close()
			return nil
		})

		if migrate {
			if err = directory.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate contact database: %w", err)
			}
		}

		logger.InfoKV(ctx, "Using PostgreSQL contact directory")

		return directory, nil
	default:
		directory, err := contacts.NewFileDirectory(settings.Contacts.File)
		if err != nil {
			return nil, fmt.Errorf("open contact file: %w", err)
		}

		logger.InfoKV(ctx, "Using file contact directory", "file", settings.Contacts.File)

		return directory, nil
	}
}

// openTransport builds the configured notification transport.
func openTransport(settings *config.Config, closers *closeStack) (dispatcher.Transport, error) {
	switch settings.Transport.Kind {
	case config.TransportSMTP:
		smtp := settings.Transport.SMTP

		transport, err := email.New(email.Options{
			Host:     smtp.Host,
			Port:     smtp.Port,
			Username: smtp.Username,
			Password: smtp.Password,
			From:     smtp.From,
			Timeout:  settings.Dispatch.SendTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("configure smtp transport: %w", err)
		}

		return transport, nil
	case config.TransportNATS:
		transport, err := natsbus.Connect(settings.Transport.NATS.URL, settings.Transport.NATS.SubjectPrefix, settings.Timeout)
		if err != nil {
			return nil, fmt.Errorf("configure nats transport: %w", err)
		}

		closers.push(func() error {
			transport.Close()
			return nil
		})

		return transport, nil
	default:
		return console.New(), nil
	}
}

// openLocationStore uses Redis when configured and memory otherwise.
func openLocationStore(ctx context.Context, settings *config.Config, closers *closeStack) (location.Store, error) {
	cfg := settings.LocationStore
	if cfg.RedisAddress == "" {
		return location.NewMemoryStore(), nil
	}

	store := location.NewRedisStore(redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
	}), cfg.TTL)

	closers.push(store.Close)

	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return store, nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}

// closeStack releases resources in reverse order of acquisition.
type closeStack []func() error

func (s *closeStack) push(closer func() error) {
	*s = append(*s, closer)
}

func (s *closeStack) closeAll(ctx context.Context) {
	for i := len(*s) - 1; i >= 0; i-- {
		if err := (*s)[i](); err != nil {
			logger.WarnKV(ctx, "Failed to release resource", "error", err)
		}
	}
}
