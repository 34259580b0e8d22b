package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"milk-subscription-be/internal/bootstrap"
	"milk-subscription-be/internal/config"
	"milk-subscription-be/internal/dto"
	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/service"
	"milk-subscription-be/pkg/database"
	"milk-subscription-be/pkg/events"
	"milk-subscription-be/pkg/subscription"

	pktNats "milk-subscription-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

const usage = `usage: subctl <command> [args]

  status  <user-id>                  current subscription view
  history <user-id>                  superseded subscriptions
  pause   <subscription-id>
  resume  <subscription-id>
  cancel  <subscription-id> [reason]
  watch                              tail subscription events from NATS`

// operator runs lifecycle commands without the ownership check the HTTP API applies.
type operator struct {
	svc       service.ISubscriptionService
	lifecycle *subscription.Lifecycle
	natsURL   string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	cfg := config.Load()
	db, err := database.NewGormDBFromDSN(cfg.Database.Driver, cfg.Database.Connection, cfg.IsProduction())
	if err != nil {
		color.Red("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	container, err := bootstrap.NewContainer(db, cfg)
	if err != nil {
		color.Red("Failed to build container: %v", err)
		os.Exit(1)
	}
	defer container.Close()

	op := &operator{svc: container.SubscriptionService, lifecycle: container.Lifecycle, natsURL: cfg.App.NatsURL}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := op.run(ctx, os.Args[1:]); err != nil {
		color.Red("%v", err)
		container.Close()
		os.Exit(1)
	}
}

func (op *operator) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "status":
		userId, err := parseId(rest, "user-id")
		if err != nil {
			return err
		}
		view, err := op.svc.GetCurrent(ctx, userId)
		if err != nil {
			return err
		}
		printView(view)

	case "history":
		userId, err := parseId(rest, "user-id")
		if err != nil {
			return err
		}
		items, err := op.svc.GetHistory(ctx, userId, 1, 100)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			color.Yellow("No history for %s", userId)
		}
		for _, h := range items {
			color.Cyan("%s  %-9s archived %s", h.SubscriptionId, h.Status, h.ArchivedAt.Format("2006-01-02 15:04"))
			fmt.Printf("  %s / %s, paid %d %s, %s -> %s\n",
				h.Subscription.PlanType, h.Subscription.DurationCode, h.Subscription.Amount, h.Subscription.Currency,
				h.Subscription.StartDate.Format("2006-01-02"), h.Subscription.EndDate.Format("2006-01-02"))
		}

	case "pause", "resume", "cancel":
		id, err := parseId(rest, "subscription-id")
		if err != nil {
			return err
		}
		var sub *entity.Subscription
		switch cmd {
		case "pause":
			sub, err = op.lifecycle.Pause(ctx, id)
		case "resume":
			sub, err = op.lifecycle.Resume(ctx, id)
		case "cancel":
			sub, err = op.lifecycle.Cancel(ctx, id, strings.Join(rest[1:], " "))
		}
		if err != nil {
			return err
		}
		color.Green("%s is now %s", id, sub.Status)

	case "watch":
		return op.watch(ctx)

	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
	return nil
}

func (op *operator) watch(ctx context.Context) error {
	if op.natsURL == "" {
		return fmt.Errorf("NATS_URL is not set")
	}
	sub, err := pktNats.NewSubscriber(op.natsURL)
	if err != nil {
		return err
	}
	defer sub.Close()

	err = sub.Subscribe(ctx, pktNats.Subject("*"), "", func(ctx context.Context, e events.BaseEvent) error {
		data, _ := json.Marshal(e.Data)
		color.Cyan("%s  %s", e.OccurredAt.Format("2006-01-02 15:04:05"), e.Type)
		fmt.Printf("  %s\n", data)
		return nil
	})
	if err != nil {
		return err
	}

	color.Yellow("Watching subscription events, Ctrl-C to stop")
	<-ctx.Done()
	return nil
}

func parseId(args []string, name string) (uuid.UUID, error) {
	if len(args) < 1 {
		return uuid.Nil, fmt.Errorf("missing <%s>\n\n%s", name, usage)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q", name, args[0])
	}
	return id, nil
}

func printView(v *dto.SubscriptionResponse) {
	paint := color.New(color.FgGreen, color.Bold)
	if !v.IsActive {
		paint = color.New(color.FgYellow, color.Bold)
	}
	paint.Printf("%s  %s\n", v.Id, strings.ToUpper(v.Status))
	fmt.Printf("  plan:           %s / %s\n", v.PlanType, v.DurationCode)
	fmt.Printf("  period:         %s -> %s\n", v.StartDate.Format("2006-01-02"), v.EndDate.Format("2006-01-02"))
	fmt.Printf("  remaining days: %d\n", v.RemainingDays)
	fmt.Printf("  paused days:    %d\n", v.TotalPausedDays)
	fmt.Printf("  payment:        %s (%s via %s)\n", v.PaymentId, v.PaymentStatus, v.PaymentProvider)
	if v.CancellationReason != nil {
		fmt.Printf("  cancelled:      %s\n", *v.CancellationReason)
	}
}
