package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestUserServiceLookup(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), nil)
	ctx := context.Background()

	users, err := svc.Lookup(ctx, domain.DemoUserID, "", domain.DemoUserID, "bogus", domain.DemoAgentUserID)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(users) != 2 || users[domain.DemoAgentUserID].Name != "Demo Agent" {
		t.Fatalf("Lookup() = %v", users)
	}

	if _, err := svc.GetUser(ctx, "00000000-0000-0000-0000-0000000000ff"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("GetUser(missing) error = %v, want not found", err)
	}
	all, err := svc.ListUsers(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListUsers() = %d, %v", len(all), err)
	}
}

func TestActivityServiceCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	dispatcher := events.NewInMemoryDispatcher()
	NewActivityService(dispatcher, metrics, nil).RegisterHandlers()

	f := newTicketFixture(t)
	f.svc.dispatcher = dispatcher
	ticket := f.create(t, "Projector", domain.TicketPriorityLow)
	if _, err := f.svc.AddComment(context.Background(), ticket.ID, "on it", domain.DemoAgentUserID); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	count, err := testutil.GatherAndCount(reg, "helpdesk_ticket_events_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("event series = %d, want created and commented", count)
	}
}
