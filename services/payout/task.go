package payout

import (
	"context"
	"encoding/json"
	"time"

	"creatorhub-payments/pkg/db/option"
	"creatorhub-payments/pkg/provider"
	"creatorhub-payments/pkg/task"
	"creatorhub-payments/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// staleAfter is how long a payout may sit in processing before the
// reconciler asks the provider what happened to it.
const staleAfter = 10 * time.Minute

const reconcileInterval = 5 * time.Minute

type reconcileOnePayload struct {
	PayoutID string `json:"payout_id"`
}

type TaskHandler struct {
	svc      *Service
	enqueuer task.Enqueuer
}

type TaskHandlerParams struct {
	fx.In

	Service  *Service
	Enqueuer task.Enqueuer
}

func NewTaskHandler(p TaskHandlerParams) *TaskHandler {
	return &TaskHandler{svc: p.Service, enqueuer: p.Enqueuer}
}

func RegisterTasks(mux *asynq.ServeMux, h *TaskHandler) {
	mux.HandleFunc(taskname.PayoutReconcileStale, h.HandleReconcileStale)
	mux.HandleFunc(taskname.PayoutReconcileOne, h.HandleReconcileOne)
}

// HandleReconcileStale sweeps payouts stuck in processing and fans out one
// reconcile task per record. A payout goes stale when the provider accepted
// the transfer but its webhook never arrived.
func (h *TaskHandler) HandleReconcileStale(ctx context.Context, _ *asynq.Task) error {
	cutoff := time.Now().UTC().Add(-staleAfter)

	stale, err := h.svc.payouts.Find(ctx,
		&PayoutRecord{Status: StatusProcessing},
		option.ApplyOperator(option.Condition{Field: "updated_at", Operator: option.LT, Value: cutoff}),
		option.WithLimit(100),
	)
	if err != nil {
		return err
	}

	for _, record := range stale {
		payload, err := json.Marshal(reconcileOnePayload{PayoutID: record.ID})
		if err != nil {
			return err
		}
		if _, err := h.enqueuer.Enqueue(asynq.NewTask(taskname.PayoutReconcileOne, payload), asynq.Queue("low")); err != nil {
			zap.L().Error("failed to enqueue payout reconcile",
				zap.String("payout_id", record.ID),
				zap.Error(err),
			)
		}
	}

	if len(stale) > 0 {
		zap.L().Info("enqueued stale payout reconciliation", zap.Int("count", len(stale)))
	}

	return nil
}

// HandleReconcileOne queries the provider for one in-flight payout and
// applies the answer through the same path webhooks use.
func (h *TaskHandler) HandleReconcileOne(ctx context.Context, t *asynq.Task) error {
	var payload reconcileOnePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}

	record, err := h.svc.payouts.FindOne(ctx, &PayoutRecord{ID: payload.PayoutID})
	if err != nil {
		return err
	}
	if record == nil || record.Status != StatusProcessing {
		return nil
	}

	client, ok := h.svc.providers.Get(provider.Name(record.Provider))
	if !ok {
		zap.L().Error("cannot reconcile payout, provider not configured",
			zap.String("payout_id", record.ID),
			zap.String("provider", record.Provider),
		)
		return nil
	}

	result := client.QueryTransfer(ctx, record.TransferReference())

	h.svc.Reconcile(ctx, WebhookEvent{
		Provider:     provider.Name(record.Provider),
		Reference:    record.TransferReference(),
		Status:       result.Status,
		ProviderTxID: result.ProviderTxID,
		Message:      result.Message,
	})

	return nil
}

// StartReconcileTicker periodically enqueues the stale sweep for as long as
// the process runs.
func StartReconcileTicker(lc fx.Lifecycle, enqueuer task.Enqueuer) {
	ticker := time.NewTicker(reconcileInterval)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if _, err := enqueuer.Enqueue(asynq.NewTask(taskname.PayoutReconcileStale, nil), asynq.Queue("low")); err != nil {
							zap.L().Error("failed to enqueue stale payout sweep", zap.Error(err))
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
