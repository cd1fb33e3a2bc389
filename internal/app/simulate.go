package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signal-feed/internal/alerting"
	"signal-feed/internal/signal"
)

// SimulateAlert sends a synthetic alert for asset through the configured notifier.
// The quote uses the instrument's reference price and the given 24h change, which
// must be large enough to produce a FORTE signal.
func (a *App) SimulateAlert(ctx context.Context, asset string, change decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	inst, err := a.Registry.Resolve(asset)
	if err != nil {
		return err
	}

	sig := signal.Generate(inst.ReferencePrice, change)
	if sig.Tier != signal.TierForte {
		return fmt.Errorf("change %s%% yields a %s signal; alerts are only sent for %s", change.String(), sig.Tier, signal.TierForte)
	}

	note := alerting.Notification{
		Asset:      inst.Name,
		Tier:       string(sig.Tier),
		Direction:  string(sig.Direction),
		Price:      inst.ReferencePrice,
		Change24h:  change,
		RSI:        sig.RSI,
		Expiration: sig.Expiration,
		Reasons:    sig.Reasons,
		Source:     "simulated",
		ObservedAt: time.Now().UTC(),
		Simulated:  true,
	}

	if err := notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("send simulated alert: %w", err)
	}

	a.Logger.Info().Str("instrument", inst.Name).Str("direction", note.Direction).Msg("simulated alert sent")
	return nil
}
