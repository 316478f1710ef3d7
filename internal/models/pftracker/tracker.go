// Package pftracker applique la politique d'enregistrement des visiteurs :
// nouvelle IP insérée, IP connue mise à jour après le délai de carence, sinon rien.
package pftracker

import (
	"context"
	"errors"
	"portfolio/internal/models/pflog"
	"portfolio/internal/models/pfmetrics"
	"portfolio/internal/models/pfresolver"
	"portfolio/internal/models/pfvisitors"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCooldown est le délai minimal entre deux visites comptées pour une même IP
const DefaultCooldown = 4 * time.Hour

type Outcome int

const (
	Error Outcome = iota
	New
	Updated
	Skipped
	Waiting
)

func (o Outcome) String() string {
	switch o {
	case New:
		return "new"
	case Updated:
		return "updated"
	case Skipped:
		return "skipped"
	case Waiting:
		return "waiting"
	default:
		return "error"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result décrit le sort d'un appel à Track. Err n'est renseigné que pour Error.
type Result struct {
	Outcome Outcome `json:"outcome"`
	IP      string  `json:"ip,omitempty"`
	Err     error   `json:"-"`
}

type Tracker struct {
	resolver *pfresolver.Resolver
	ledger   pfvisitors.Ledger
	cooldown time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func New(resolver *pfresolver.Resolver, ledger pfvisitors.Ledger, cooldown time.Duration) *Tracker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Tracker{
		resolver: resolver,
		ledger:   ledger,
		cooldown: cooldown,
		now:      func() time.Time { return time.Now().UTC() },
		log:      pflog.Component("tracker"),
	}
}

// Track enregistre au plus une visite. Il ne panique pas et ne retourne jamais
// d'erreur à l'appelant : les échecs sont journalisés et rapportés dans Result.
func (t *Tracker) Track(ctx context.Context, caller pfresolver.Caller) Result {
	res := t.track(ctx, caller)
	pfmetrics.VisitsTotal.WithLabelValues(res.Outcome.String()).Inc()

	var event *zerolog.Event
	switch res.Outcome {
	case New, Updated:
		event = t.log.Info()
	case Error:
		event = t.log.Warn().Err(res.Err)
	default:
		event = t.log.Debug()
	}
	event.Str("outcome", res.Outcome.String()).Str("ip", res.IP).Msg("visitor")
	return res
}

func (t *Tracker) track(ctx context.Context, caller pfresolver.Caller) Result {
	ip, err := t.resolver.IP(ctx, caller)
	if errors.Is(err, pfresolver.ErrPending) {
		return Result{Outcome: Waiting}
	}
	if err != nil {
		return Result{Outcome: Error, Err: err}
	}

	visitor, err := t.ledger.Find(ctx, ip)
	switch {
	case errors.Is(err, pfvisitors.ErrNotFound):
		return t.insert(ctx, ip)
	case err != nil:
		return Result{Outcome: Error, IP: ip, Err: err}
	}

	now := t.now()
	if now.Sub(visitor.LastVisit) <= t.cooldown {
		return Result{Outcome: Skipped, IP: ip}
	}

	err = t.ledger.Touch(ctx, ip, now)
	switch {
	case errors.Is(err, pfvisitors.ErrNotFound):
		// entrée supprimée entre Find et Touch
		return Result{Outcome: Skipped, IP: ip}
	case err != nil:
		return Result{Outcome: Error, IP: ip, Err: err}
	}
	return Result{Outcome: Updated, IP: ip}
}

func (t *Tracker) insert(ctx context.Context, ip string) Result {
	geo, err := t.resolver.Locate(ctx, ip)
	if err != nil {
		return Result{Outcome: Error, IP: ip, Err: err}
	}

	err = t.ledger.Insert(ctx, ip, geo, t.now())
	switch {
	case errors.Is(err, pfvisitors.ErrDuplicate):
		// une visite concurrente a créé l'entrée en premier
		return Result{Outcome: Skipped, IP: ip}
	case err != nil:
		return Result{Outcome: Error, IP: ip, Err: err}
	}
	return Result{Outcome: New, IP: ip}
}
