package metrics

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint
	"time"

	"video_pipeline_service/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Serve expose /metrics on addr for processes without a fiber app (the worker).
// pprof endpoints are registered on the same mux unless withPprof is false.
// The server stops when ctx is done.
func Serve(ctx context.Context, addr string, withPprof bool) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if withPprof {
		// pprof handlers live on DefaultServeMux
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
	}

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Log.Info("metrics server listening", zap.String("addr", addr), zap.Bool("pprof", withPprof))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
