package cleaner

import (
	"context"
	"log/slog"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/pandodao/safe-pay/core"
)

const propertyCleanOffset = "cleaner_offset"

type Config struct {
	Interval  time.Duration `valid:"required"`
	Retention time.Duration `valid:"required"`
}

// Cleaner prunes journal entries that reached a terminal status longer than
// the retention ago.
type Cleaner struct {
	transfers  core.TransferStore
	properties core.PropertyStore
	logger     *slog.Logger
	cfg        Config
}

func New(
	transfers core.TransferStore,
	properties core.PropertyStore,
	logger *slog.Logger,
	cfg Config,
) *Cleaner {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	return &Cleaner{
		transfers:  transfers,
		properties: properties,
		logger:     logger.With("worker", "cleaner"),
		cfg:        cfg,
	}
}

func (w *Cleaner) Run(ctx context.Context) error {
	w.logger.Info("cleaner start")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.Interval):
			_ = w.run(ctx, time.Now())
		}
	}
}

func (w *Cleaner) run(ctx context.Context, now time.Time) error {
	var offset uint64
	if err := w.properties.Get(ctx, propertyCleanOffset, &offset); err != nil {
		w.logger.Error("properties.Get", "err", err)
		return err
	}

	var (
		deadline = now.Add(-w.cfg.Retention)
		cursor   = offset
		// entries still waiting for settlement hold the checkpoint back
		blocked bool
		deleted int
	)

scan:
	for {
		const limit = 500
		transfers, err := w.transfers.List(ctx, cursor, limit)
		if err != nil {
			w.logger.Error("transfers.List", "err", err)
			return err
		}

		for _, t := range transfers {
			if t.CreatedAt.After(deadline) {
				break scan
			}

			cursor = t.ID

			if !t.Status.Terminal() {
				blocked = true
				continue
			}

			if err := w.transfers.Delete(ctx, t.ID); err != nil {
				w.logger.Error("transfers.Delete", "id", t.ID, "err", err)
				return err
			}

			deleted++
			if !blocked {
				offset = t.ID
			}
		}

		if len(transfers) < limit {
			break
		}
	}

	if deleted > 0 {
		w.logger.Info("journal pruned", "count", deleted, "offset", offset)
	}

	if err := w.properties.Set(ctx, propertyCleanOffset, offset); err != nil {
		w.logger.Error("properties.Set", "err", err)
		return err
	}

	return nil
}
