package campaign

import (
	"context"
	"time"

	"creatorhub-payments/pkg/task"
	"creatorhub-payments/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const expireBatch = 100

const expireInterval = time.Hour

type TaskHandler struct {
	svc *Service
}

func NewTaskHandler(svc *Service) *TaskHandler {
	return &TaskHandler{svc: svc}
}

func RegisterTasks(mux *asynq.ServeMux, h *TaskHandler) {
	mux.HandleFunc(taskname.CampaignExpireRun, h.HandleExpireRun)
}

// HandleExpireRun cancels active campaigns whose end date has passed. Their
// escrowed budgets go back to the brand.
func (h *TaskHandler) HandleExpireRun(ctx context.Context, _ *asynq.Task) error {
	expired, err := h.svc.ExpireDue(ctx, expireBatch)
	if err != nil {
		return err
	}
	if expired > 0 {
		zap.L().Info("expired overdue campaigns", zap.Int("count", expired))
	}
	return nil
}

// StartExpireTicker periodically enqueues the expiry sweep for as long as the
// process runs.
func StartExpireTicker(lc fx.Lifecycle, enqueuer task.Enqueuer) {
	ticker := time.NewTicker(expireInterval)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if _, err := enqueuer.Enqueue(asynq.NewTask(taskname.CampaignExpireRun, nil), asynq.Queue("low")); err != nil {
							zap.L().Error("failed to enqueue campaign expiry sweep", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ticker.Stop()
			close(done)
			return nil
		},
	})
}
