package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"signal-feed/internal/cache"
	"signal-feed/internal/instrument"
	"signal-feed/internal/service"
)

// Analyze prints the current signal for each requested asset, or every
// registered instrument when none is given. With redis enabled the last
// mirrored snapshot is preferred over a fresh upstream fetch.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions, w io.Writer) error {
	assets := opts.Assets
	if len(assets) == 0 {
		assets = a.Registry.Names()
	}
	for _, asset := range assets {
		if _, err := a.Registry.Resolve(asset); err != nil {
			var unknown *instrument.UnknownError
			if errors.As(err, &unknown) {
				return fmt.Errorf("%w; available: %s", err, strings.Join(unknown.Available, ", "))
			}
			return err
		}
	}

	pc := cache.New()
	if err := a.preloadFromMirror(ctx, pc); err != nil {
		a.Logger.Warn().Err(err).Msg("read mirrored snapshot; fetching fresh quotes")
	}

	svc := service.New(a.Config.App.Name, a.Registry, pc, a.newResolver(nil), nil, nil, a.Logger)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Asset\tPrice\t24h%\tRSI\tTier\tSignal\tExp\tSource\tObserved (UTC)\tReasons")

	for _, asset := range assets {
		res, err := svc.Analyze(ctx, asset)
		if err != nil {
			return err
		}
		fmt.Fprintln(writer, analysisRow(res))
	}

	return writer.Flush()
}

func analysisRow(res service.Analysis) string {
	sig := res.Signal
	direction, expiration := "-", "-"
	if sig.Actionable() {
		direction = string(sig.Direction)
		expiration = fmt.Sprintf("%dm", sig.Expiration)
	}
	reasons := strings.Join(sig.Reasons, "; ")
	if sig.Note != "" {
		reasons = strings.TrimPrefix(reasons+"; "+sig.Note, "; ")
	}
	observed := "-"
	if !res.Quote.ObservedAt.IsZero() {
		observed = res.Quote.ObservedAt.UTC().Format(time.RFC3339)
	}

	return strings.Join([]string{
		res.Instrument.Name,
		res.Quote.Price.String(),
		res.Quote.Change24h.StringFixed(2),
		sig.RSI.StringFixed(2),
		string(sig.Tier),
		direction,
		expiration,
		res.Quote.Source,
		observed,
		sanitizeInline(reasons),
	}, "\t")
}

func (a *App) preloadFromMirror(ctx context.Context, pc *cache.PriceCache) error {
	mirror, closeMirror, err := a.openMirror(ctx)
	if err != nil || mirror == nil {
		return err
	}
	defer closeMirror()

	snap, err := mirror.Read(ctx)
	if err != nil {
		return err
	}
	for symbol, q := range snap {
		pc.Update(symbol, q)
	}
	a.Logger.Debug().Int("quotes", len(snap)).Msg("loaded mirrored snapshot")
	return nil
}

// Instruments prints the registry grouped by category.
func (a *App) Instruments(w io.Writer) error {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Name\tCategory\tProviders\tReference")

	for _, category := range []instrument.Category{instrument.CategoryCrypto, instrument.CategoryForex, instrument.CategoryCommodity} {
		for _, inst := range a.Registry.ByCategory(category) {
			candidates := make([]string, 0, len(inst.Candidates))
			for _, c := range inst.Candidates {
				candidates = append(candidates, c.Provider+":"+c.Symbol)
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
				inst.Name,
				inst.Category,
				strings.Join(candidates, ","),
				inst.ReferencePrice.String(),
			)
		}
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
