// Package resolver turns a batch of (program name, access code) pairs into
// resolved workout programs. Each pair gets its own portal session; the
// portal's per-session current program state makes session sharing between
// pairs unsafe.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rehabgo/lib/scrapers/medbridge"
	"rehabgo/lib/workout"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const DefaultBaseUrl = "https://www.medbridgego.com"

type ProgramToken struct {
	Name string
	Code string
}

type Credentials struct {
	Username string
	Password string
}

type Options struct {
	// BaseUrl of the patient portal, DefaultBaseUrl when empty.
	BaseUrl string
	// Concurrency caps how many portal sessions run at once. Defaults to 4.
	Concurrency int
	// UnitTimeout bounds one pair's login, binding and fetch. Defaults to
	// 2 minutes.
	UnitTimeout time.Duration
}

type Service struct {
	creds Credentials
	opts  Options
}

func NewService(creds Credentials, opts Options) *Service {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = time.Minute * 2
	}
	return &Service{creds: creds, opts: opts}
}

// Outcome is the result for one token. Err is set when resolution failed;
// Program is set when it succeeded. A failed pair never aborts the batch.
type Outcome struct {
	Token   ProgramToken
	Program *workout.Program
	Binding medbridge.Binding
	Err     error
}

// ErrorKind buckets the outcome's failure for reporting and run history.
func (o Outcome) ErrorKind() string {
	switch {
	case o.Err == nil:
		return ""
	case errors.Is(o.Err, medbridge.ErrUnbound):
		return "unbound"
	case errors.Is(o.Err, medbridge.ErrMalformedPayload):
		return "malformed_payload"
	}
	var statusErr *medbridge.StatusError
	if errors.As(o.Err, &statusErr) {
		return "transport"
	}
	if errors.Is(o.Err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "other"
}

// Resolve runs the whole batch and returns one outcome per token, in input
// order. Outcomes are independent; callers decide how many failures they
// tolerate.
func (s *Service) Resolve(ctx context.Context, tokens []ProgramToken) []Outcome {
	ctx, span := tracer.Start(ctx, "resolver:Resolve")
	defer span.End()
	span.SetAttributes(attribute.Int("token_count", len(tokens)))

	outcomes := make([]Outcome, len(tokens))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.opts.Concurrency)
	for i, token := range tokens {
		i, token := i, token
		group.Go(func() error {
			outcomes[i] = s.resolveOne(ctx, token)
			return nil
		})
	}
	// the workers only report through the outcomes slice
	_ = group.Wait()

	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Err == nil {
			succeeded++
		}
	}
	span.SetAttributes(attribute.Int("succeeded", succeeded))
	if succeeded == 0 && len(tokens) > 0 {
		span.SetStatus(codes.Error, "no program resolved")
	}
	return outcomes
}

func (s *Service) resolveOne(ctx context.Context, token ProgramToken) Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.opts.UnitTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "resolver:resolveOne")
	defer span.End()
	span.SetAttributes(attribute.String("program", token.Name))

	outcome := Outcome{Token: token}
	fail := func(err error) Outcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		slog.WarnContext(ctx, "program resolution failed",
			"program", token.Name, "err", err)
		outcome.Err = err
		return outcome
	}

	client, err := medbridge.NewClient(ctx, medbridge.ClientOptions{
		BaseUrl: s.opts.BaseUrl,
	})
	if err != nil {
		return fail(err)
	}

	if err := client.Login(ctx, s.creds.Username, s.creds.Password); err != nil {
		return fail(err)
	}
	defer func() {
		// best effort; an unreachable sign out leaves only server side state
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := client.Logout(ctx); err != nil {
			slog.DebugContext(ctx, "sign out failed", "program", token.Name, "err", err)
		}
	}()

	payload, binding, err := client.Bind(ctx, token.Code)
	if err != nil {
		return fail(err)
	}

	program := medbridge.ToWorkout(payload, token.Name)
	outcome.Program = &program
	outcome.Binding = binding
	slog.InfoContext(ctx, "program resolved",
		"program", token.Name,
		"via", binding.Via,
		"exercises", program.ExerciseCount)
	return outcome
}
