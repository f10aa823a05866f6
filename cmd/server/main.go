package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"login-service/internal/config"
	"login-service/internal/factory"
	"login-service/internal/handler"
	"login-service/internal/tls"
	"login-service/internal/util"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Initialize factory (which loads config and initializes all clients)
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()

	router, err := setupRouter(f)
	if err != nil {
		util.Fatal("Failed to build router", util.ErrorField(err))
	}

	servers := buildServers(f, cfg, router)
	logDemoAccounts(f)

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go serve(srv, errCh)
	}

	util.Info("Server started successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.String("url", baseURL(cfg)),
	)

	waitForShutdown(f, errCh, servers...)
}

func setupRouter(f *factory.Factory) (http.Handler, error) {
	svc, err := f.LoginService()
	if err != nil {
		return nil, err
	}
	cfg := f.Config()
	return handler.NewRouter(handler.RouterDeps{
		Service: svc,
		Cookies: handler.NewSessionCookies(cfg.Session, cfg.Server.EnableTLS),
		Metrics: f.Metrics(),
		Health:  f.HealthCheck,
		Server:  cfg.Server,
		Logger:  util.Get(),
	}), nil
}

// buildServers returns the plain HTTP server and, with TLS enabled, the HTTPS server. The
// plain listener then only answers ACME challenges and redirects to HTTPS.
func buildServers(f *factory.Factory, cfg *config.Config, router http.Handler) []*http.Server {
	plain := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if !cfg.Server.EnableTLS {
		util.Warn("Starting HTTP server - TLS is disabled",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.Port),
		)
		return []*http.Server{plain}
	}

	manager := f.TLSManager()
	plain.Handler = manager.HTTPHandler(tls.RedirectToHTTPS(cfg.Server.TLSPort))

	secure := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.TLSPort),
		Handler:      router,
		TLSConfig:    manager.TLSConfig(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	util.Info("Starting HTTPS server",
		util.String("environment", cfg.Environment),
		util.Int("port", cfg.Server.TLSPort),
		util.Bool("auto_cert", cfg.Server.AutoCert),
	)
	return []*http.Server{plain, secure}
}

func serve(srv *http.Server, errCh chan<- error) {
	var err error
	if srv.TLSConfig != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("%s: %w", srv.Addr, err)
	}
}

func logDemoAccounts(f *factory.Factory) {
	accounts, err := f.Accounts(context.Background())
	if err != nil {
		util.Warn("Could not list accounts", util.ErrorField(err))
		return
	}
	for _, a := range accounts {
		util.Info("Account available",
			util.AccountField(a.ID),
			util.String("display_name", a.DisplayName),
			util.Bool("second_factor", a.RequiresSecondFactor()),
		)
	}
}

func baseURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" {
		host = "localhost"
	}
	if cfg.Server.EnableTLS {
		return fmt.Sprintf("https://%s:%d", host, cfg.Server.TLSPort)
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

func waitForShutdown(f *factory.Factory, errCh <-chan error, servers ...*http.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case sig := <-signalChan:
		util.Info("Received shutdown signal", util.String("signal", sig.String()))
	case err := <-errCh:
		util.Error("Server failed", util.ErrorField(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			util.Error("Failed to shutdown server gracefully", util.String("addr", srv.Addr), util.ErrorField(err))
		} else {
			util.Info("Server shutdown completed", util.String("addr", srv.Addr))
		}
	}
	f.Close()
}
