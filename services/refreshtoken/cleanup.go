package refreshtoken

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupWorker periodically deletes expired refresh tokens.
type CleanupWorker struct {
	service  *Service
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewCleanupWorker(service *Service, interval time.Duration) *CleanupWorker {
	return &CleanupWorker{
		service:  service,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *CleanupWorker) Start() {
	go w.run()
}

func (w *CleanupWorker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *CleanupWorker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stop:
			return
		}
	}
}

func (w *CleanupWorker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := w.service.CleanupExpired(ctx)
	if err != nil {
		w.service.logger.Error("refresh token cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		w.service.logger.Info("cleaned up expired refresh tokens", zap.Int64("deleted", deleted))
	}
}
