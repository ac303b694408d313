package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/NewsHub/internal/api"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP API 与定时任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, appCfg)
		if err != nil {
			return err
		}
		defer a.Close()

		a.sched.Start()

		if appCfg.App.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := api.NewServer(a.store, a.news, a.scorer, a.sched, api.Options{
			BasicAuthUser: appCfg.App.BasicAuthUser,
			BasicAuthPass: appCfg.App.BasicAuthPass,
			WebRoot:       appCfg.App.WebRoot,
		})
		httpSrv := &http.Server{
			Addr:              ":" + appCfg.App.Port,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("starting api server", "addr", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}
