// Command selium-server runs the Selium broker: it loads selium.toml (if
// present), listens for QUIC connections, and fans out published messages to
// subscribers per topic. Signal handling follows the
// os/signal.Notify-then-block-on-channel shape, extended here to drain
// in-flight connections before exiting.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/selium-io/selium/broker"
	"github.com/selium-io/selium/internal/config"
	"github.com/selium-io/selium/internal/log"
	"github.com/selium-io/selium/internal/metrics"
	"github.com/selium-io/selium/internal/tlsutil"
	"github.com/selium-io/selium/wire"
)

// defaultListenAddr is used when neither -config nor -bind-addr supplies one.
const defaultListenAddr = "127.0.0.1:7001"

func main() {
	configPath := flag.String("config", "selium.toml", "path to selium.toml; flags below override its values, and the file itself is optional")
	genConfig := flag.Bool("generate-config", false, "write a starter selium.toml to -config and exit")
	bindAddr := flag.String("bind-addr", "", "listen address (host:port), overrides [Server] listen")
	certFile := flag.String("cert", "", "TLS certificate path, overrides [Server] cert_file")
	keyFile := flag.String("key", "", "TLS key path, overrides [Server] key_file")
	metricsAddr := flag.String("metrics-addr", "", "metrics listen address, overrides [Metrics] listen and enables it")
	subscriberTimeout := flag.Duration("subscriber-timeout", 0, "per-send subscriber timeout, overrides [Server] subscriber_timeout_ms")
	maxFrameSize := flag.Uint("max-frame-size", 0, "maximum wire frame size in bytes, overrides [Server] max_frame_size")
	flag.Parse()

	if *genConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, *bindAddr, *certFile, *keyFile, *metricsAddr, *subscriberTimeout, *maxFrameSize)

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads path if it exists; a missing file at the default path is
// not an error, since the whole server can be driven by flags alone.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// applyFlagOverrides overlays any explicitly set flag onto cfg. An empty
// string or zero duration/size means "not set" and leaves the file value (or
// zero value) untouched.
func applyFlagOverrides(cfg *config.Config, bindAddr, certFile, keyFile, metricsAddr string, subscriberTimeout time.Duration, maxFrameSize uint) {
	if bindAddr != "" {
		cfg.Server.Listen = bindAddr
	}
	if certFile != "" {
		cfg.Server.CertFile = certFile
	}
	if keyFile != "" {
		cfg.Server.KeyFile = keyFile
	}
	if metricsAddr != "" {
		cfg.Metrics.Listen = metricsAddr
		cfg.Metrics.Enabled = true
	}
	if subscriberTimeout > 0 {
		cfg.Server.SubscriberTimeoutMS = uint32(subscriberTimeout.Milliseconds())
	}
	if maxFrameSize > 0 {
		cfg.Server.MaxFrameSize = uint32(maxFrameSize)
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaultListenAddr
	}
}

func run(cfg *config.Config) error {
	backend, err := log.New(cfg.Logging.Level, cfg.Logging.Disabled)
	if err != nil {
		return err
	}
	serverLog := backend.GetLogger("selium-server")

	reg := metrics.New()
	if cfg.Metrics.Enabled {
		go func() {
			serverLog.Noticef("metrics listening on %s", cfg.Metrics.Listen)
			if err := http.ListenAndServe(cfg.Metrics.Listen, reg.Handler()); err != nil {
				serverLog.Errorf("metrics server: %v", err)
			}
		}()
	}

	tlsConf, err := tlsutil.ServerConfig(cfg.Server.CertFile, cfg.Server.KeyFile)
	if err != nil {
		return err
	}

	maxFrameSize := cfg.Server.MaxFrameSize
	if maxFrameSize == 0 {
		maxFrameSize = wire.DefaultMaxFrameSize
	}

	drainTimeout := time.Duration(cfg.Server.DrainTimeoutMS) * time.Millisecond
	if drainTimeout <= 0 {
		drainTimeout = broker.DefaultDrainTimeout
	}

	router := broker.NewRouter(broker.RouterConfig{
		SubscriberTimeout: time.Duration(cfg.Server.SubscriberTimeoutMS) * time.Millisecond,
		Metrics:           reg,
		Log:               backend.GetLogger("broker"),
	})
	acceptor := broker.NewAcceptor(broker.AcceptorConfig{
		Router:       router,
		MaxFrameSize: maxFrameSize,
		Metrics:      reg,
		Log:          backend.GetLogger("acceptor"),
	})

	listener, err := quic.ListenAddr(cfg.Server.Listen, tlsConf, tlsutil.QUICConfig(0))
	if err != nil {
		return fmt.Errorf("selium-server: listen %s: %w", cfg.Server.Listen, err)
	}
	serverLog.Noticef("listening on %s", cfg.Server.Listen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- acceptor.Serve(ctx, listener) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-sig:
		serverLog.Noticef("draining, shutting down (timeout %s)", drainTimeout)
		cancel()
		_ = listener.Close()
		acceptor.Drain(drainTimeout)
		return nil
	}
}
