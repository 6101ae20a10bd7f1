package notification

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/casebridge/internal/config"
	"github.com/smallbiznis/casebridge/internal/notification/email"
	userdomain "github.com/smallbiznis/casebridge/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Kind classifies a notification and selects the user preference that can
// switch the category off.
type Kind string

const (
	KindCaseMessage Kind = "case_message"
	KindCaseUpdate  Kind = "case_update"
	KindDocument    Kind = "document"
)

func (k Kind) prefKey() string {
	switch k {
	case KindCaseUpdate:
		return userdomain.PrefNotifyCaseUpdates
	case KindDocument:
		return userdomain.PrefNotifyDocuments
	default:
		return userdomain.PrefNotifyCaseMessages
	}
}

// Origin says which side of the boundary produced the event. It decides the
// routing direction: user activity flows to the case handler, handler
// activity flows to the organisation's members.
type Origin string

const (
	OriginUser  Origin = "user"
	OriginAdmin Origin = "admin"
)

// Event is one routable occurrence on a case.
type Event struct {
	Kind   Kind
	Origin Origin

	CaseID   snowflake.ID
	OrgID    snowflake.ID
	CaseName string

	// AssignedTo is the case handler's display name as pushed by the
	// external system. Matched against admin users when routing user events.
	AssignedTo string

	// RecipientID narrows an admin-originated event to a single user.
	// Zero means every non-admin member of the organisation.
	RecipientID snowflake.ID

	Subject string
	Body    string
}

// Router decides who hears about a case event and delivers best-effort.
// Delivery failures are counted and logged, never propagated: a mail outage
// must not fail the push that triggered it.
type Router struct {
	log      *zap.Logger
	cfg      config.Config
	users    userdomain.Service
	provider email.Provider
	timeout  time.Duration
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   config.Config
	Users    userdomain.Service
	Provider email.Provider
}

func New(p Params) *Router {
	timeout := time.Duration(p.Config.NotifyTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Router{
		log:      p.Log.Named("notification.router"),
		cfg:      p.Config,
		users:    p.Users,
		provider: p.Provider,
		timeout:  timeout,
	}
}

// Route fans the event out to its recipients. Each candidate passes the
// suppression chain before anything is sent: a recipient that has never
// signed in, switched the category off, muted the case or was blocked from
// it hears nothing.
func (r *Router) Route(ctx context.Context, event Event) {
	switch event.Origin {
	case OriginUser:
		r.routeToHandler(ctx, event)
	case OriginAdmin:
		r.routeToMembers(ctx, event)
	default:
		r.log.Warn("event with unknown origin dropped", zap.String("origin", string(event.Origin)))
	}
}

func (r *Router) routeToHandler(ctx context.Context, event Event) {
	admin, err := r.users.FindAssignedAdmin(ctx, event.AssignedTo)
	if err != nil {
		r.log.Warn("handler lookup failed", zap.String("assigned_to", event.AssignedTo), zap.Error(err))
		admin = nil
	}
	if admin == nil {
		// No matching handler: the shared inbox gets it, with no
		// per-user suppression to consult.
		if r.cfg.DefaultNotificationAddress == "" {
			suppressedTotal.WithLabelValues(string(event.Kind), "no_recipient").Inc()
			return
		}
		r.deliver(ctx, event, r.cfg.DefaultNotificationAddress)
		return
	}
	if reason := r.suppressed(ctx, *admin, event); reason != "" {
		suppressedTotal.WithLabelValues(string(event.Kind), reason).Inc()
		return
	}
	r.deliver(ctx, event, admin.Email)
}

func (r *Router) routeToMembers(ctx context.Context, event Event) {
	if event.RecipientID != 0 {
		recipient, err := r.users.GetByID(ctx, event.RecipientID)
		if err != nil {
			r.log.Warn("recipient lookup failed", zap.String("user_id", event.RecipientID.String()), zap.Error(err))
			return
		}
		if reason := r.suppressed(ctx, recipient, event); reason != "" {
			suppressedTotal.WithLabelValues(string(event.Kind), reason).Inc()
			return
		}
		r.deliver(ctx, event, recipient.Email)
		return
	}

	members, err := r.users.ListByOrganisation(ctx, event.OrgID)
	if err != nil {
		r.log.Warn("member listing failed", zap.String("org_id", event.OrgID.String()), zap.Error(err))
		return
	}
	for _, member := range members {
		if member.Role.IsAdmin() {
			continue
		}
		if reason := r.suppressed(ctx, member, event); reason != "" {
			suppressedTotal.WithLabelValues(string(event.Kind), reason).Inc()
			continue
		}
		r.deliver(ctx, event, member.Email)
	}
}

// suppressed returns the first matching suppression reason, or "" when the
// recipient should hear about the event.
func (r *Router) suppressed(ctx context.Context, recipient userdomain.User, event Event) string {
	if recipient.MustChangePassword {
		return "never_signed_in"
	}
	if !recipient.PrefEnabled(event.Kind.prefKey()) {
		return "preference_off"
	}
	if event.CaseID != 0 {
		muted, err := r.users.IsMuted(ctx, recipient.ID, event.CaseID)
		if err != nil {
			r.log.Warn("mute check failed", zap.Error(err))
		} else if muted {
			return "case_muted"
		}
		blocked, err := r.users.IsBlocked(ctx, recipient.ID, event.CaseID)
		if err != nil {
			r.log.Warn("block check failed", zap.Error(err))
		} else if blocked {
			return "case_blocked"
		}
	}
	return ""
}

func (r *Router) deliver(parent context.Context, event Event, address string) {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	subject := event.Subject
	if subject == "" {
		subject = fmt.Sprintf("Update on case %s", event.CaseName)
	}
	body := fmt.Sprintf("<p>%s</p>", html.EscapeString(event.Body))

	if err := r.provider.Send(ctx, []string{address}, subject, body); err != nil {
		failedTotal.WithLabelValues(string(event.Kind)).Inc()
		r.log.Warn("notification delivery failed",
			zap.String("kind", string(event.Kind)),
			zap.String("to", address),
			zap.Error(err),
		)
		return
	}
	sentTotal.WithLabelValues(string(event.Kind)).Inc()
}
