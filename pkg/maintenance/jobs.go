package maintenance

import (
	"context"
	"time"

	"github.com/chime-bot/chime/pkg/archive"
	"github.com/chime-bot/chime/pkg/logger"
	"github.com/chime-bot/chime/pkg/persona"
)

// ArchivePruneJob deletes archived messages older than retentionDays.
func ArchivePruneJob(store *archive.Store, retentionDays int, schedule string) Job {
	return Job{
		Name:     "archive-prune",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().AddDate(0, 0, -retentionDays)
			n, err := store.PruneOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.InfoCF("maintenance", "Pruned archived messages", map[string]interface{}{
					"removed": n,
					"cutoff":  cutoff.Format(time.RFC3339),
				})
			}
			return nil
		},
	}
}

// ArchiveStatsJob logs per-channel archive totals once per schedule tick.
func ArchiveStatsJob(store *archive.Store, schedule string) Job {
	return Job{
		Name:     "archive-stats",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			for _, st := range stats {
				logger.InfoCF("maintenance", "Archive channel totals", map[string]interface{}{
					"channel_id": st.ChannelID,
					"messages":   st.MessageCount,
					"from_bot":   st.BotCount,
				})
			}
			return nil
		},
	}
}

// ContextCompactJob re-applies the history cap to every open context store.
func ContextCompactJob(personas *persona.Manager, schedule string) Job {
	return Job{
		Name:     "context-compact",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			trimmed := 0
			for _, store := range personas.OpenContexts() {
				trimmed += store.Compact()
			}
			if trimmed > 0 {
				logger.InfoCF("maintenance", "Compacted conversation contexts", map[string]interface{}{
					"trimmed": trimmed,
				})
			}
			return nil
		},
	}
}
