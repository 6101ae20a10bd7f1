package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/casebridge/internal/activity/domain"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	casedomain "github.com/smallbiznis/casebridge/internal/caserecord/domain"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/smallbiznis/casebridge/internal/keylock"
	"github.com/smallbiznis/casebridge/internal/normalize"
	"github.com/smallbiznis/casebridge/internal/notification"
	"github.com/smallbiznis/casebridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Guard  *keylock.Guard
	Repo   domain.Repository
	Cases  casedomain.Repository
	Router *notification.Router
	Audit  auditdomain.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	guard  *keylock.Guard
	repo   domain.Repository
	cases  casedomain.Repository
	router *notification.Router
	audit  auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("activity.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		guard:  p.Guard,
		repo:   p.Repo,
		cases:  p.Cases,
		router: p.Router,
		audit:  p.Audit,
	}
}

// AppendActivity adds a timeline entry to a case. Re-sends of a reference
// already in the timeline are acknowledged without writing: the timeline is
// append-only and never updated in place.
func (s *Service) AppendActivity(ctx context.Context, req domain.AppendActivityRequest) (domain.AppendActivityResponse, error) {
	activityType := strings.TrimSpace(req.Type)
	if activityType == "" {
		return domain.AppendActivityResponse{}, domain.ErrInvalidType
	}

	record, err := s.resolveCase(ctx, req.CaseExternalRef)
	if err != nil {
		return domain.AppendActivityResponse{}, err
	}

	externalRef := strings.TrimSpace(req.ExternalRef)
	var refPtr *string
	if externalRef != "" {
		unlock := s.guard.Lock("activity", externalRef)
		defer unlock()

		existing, err := s.repo.FindActivityByExternalRef(ctx, s.db, externalRef)
		if err != nil {
			return domain.AppendActivityResponse{}, err
		}
		if existing != nil {
			return domain.AppendActivityResponse{Outcome: domain.OutcomeDuplicate, Activity: *existing}, nil
		}
		refPtr = &externalRef
	}

	occurredAt, err := normalize.ParseDateOrNow(req.OccurredAt, s.clock)
	if err != nil {
		return domain.AppendActivityResponse{}, err
	}

	activity := domain.Activity{
		ID:          s.genID.Generate(),
		CaseID:      record.ID,
		ExternalRef: refPtr,
		Type:        activityType,
		Description: strings.TrimSpace(req.Description),
		OccurredAt:  occurredAt,
		CreatedAt:   s.clock.Now(),
	}

	if err := s.repo.InsertActivity(ctx, s.db, &activity); err != nil {
		if db.IsDuplicateKeyErr(err) && refPtr != nil {
			winner, findErr := s.repo.FindActivityByExternalRef(ctx, s.db, externalRef)
			if findErr == nil && winner != nil {
				return domain.AppendActivityResponse{Outcome: domain.OutcomeDuplicate, Activity: *winner}, nil
			}
		}
		return domain.AppendActivityResponse{}, err
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "activities",
		RecordID:    activity.ID.String(),
		Operation:   auditdomain.OperationInsert,
		Description: "activity appended to case timeline",
	})

	return domain.AppendActivityResponse{Outcome: domain.OutcomeCreated, Activity: activity}, nil
}

// AppendMessage adds correspondence to a case and hands it to the
// notification router. Messages never reach the ledger path regardless of
// what their body describes.
func (s *Service) AppendMessage(ctx context.Context, req domain.AppendMessageRequest) (domain.AppendMessageResponse, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return domain.AppendMessageResponse{}, domain.ErrInvalidBody
	}
	origin, err := parseOrigin(req.Origin)
	if err != nil {
		return domain.AppendMessageResponse{}, err
	}

	record, err := s.resolveCase(ctx, req.CaseExternalRef)
	if err != nil {
		return domain.AppendMessageResponse{}, err
	}

	externalRef := strings.TrimSpace(req.ExternalRef)
	var refPtr *string
	if externalRef != "" {
		unlock := s.guard.Lock("message", externalRef)
		defer unlock()

		existing, err := s.repo.FindMessageByExternalRef(ctx, s.db, externalRef)
		if err != nil {
			return domain.AppendMessageResponse{}, err
		}
		if existing != nil {
			// Duplicate pushes do not re-notify.
			return domain.AppendMessageResponse{Outcome: domain.OutcomeDuplicate, Message: *existing}, nil
		}
		refPtr = &externalRef
	}

	sentAt, err := normalize.ParseDateOrNow(req.SentAt, s.clock)
	if err != nil {
		return domain.AppendMessageResponse{}, err
	}

	message := domain.CaseMessage{
		ID:          s.genID.Generate(),
		CaseID:      record.ID,
		ExternalRef: refPtr,
		Origin:      origin,
		AuthorName:  strings.TrimSpace(req.AuthorName),
		Subject:     strings.TrimSpace(req.Subject),
		Body:        body,
		SentAt:      sentAt,
		CreatedAt:   s.clock.Now(),
	}

	if err := s.repo.InsertMessage(ctx, s.db, &message); err != nil {
		if db.IsDuplicateKeyErr(err) && refPtr != nil {
			winner, findErr := s.repo.FindMessageByExternalRef(ctx, s.db, externalRef)
			if findErr == nil && winner != nil {
				return domain.AppendMessageResponse{Outcome: domain.OutcomeDuplicate, Message: *winner}, nil
			}
		}
		return domain.AppendMessageResponse{}, err
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "case_messages",
		RecordID:    message.ID.String(),
		Operation:   auditdomain.OperationInsert,
		Description: "message appended to case",
	})

	if !req.SuppressNotifications {
		s.router.Route(ctx, notification.Event{
			Kind:       notification.KindCaseMessage,
			Origin:     routerOrigin(origin),
			CaseID:     record.ID,
			OrgID:      record.OrgID,
			CaseName:   record.CaseName,
			AssignedTo: record.AssignedTo,
			Subject:    message.Subject,
			Body:       message.Body,
		})
	}

	return domain.AppendMessageResponse{Outcome: domain.OutcomeCreated, Message: message}, nil
}

func (s *Service) ListActivities(ctx context.Context, caseID snowflake.ID) ([]domain.Activity, error) {
	return s.repo.ListActivitiesByCase(ctx, s.db, caseID)
}

func (s *Service) ListMessages(ctx context.Context, caseID snowflake.ID) ([]domain.CaseMessage, error) {
	return s.repo.ListMessagesByCase(ctx, s.db, caseID)
}

func (s *Service) resolveCase(ctx context.Context, caseExternalRef string) (*casedomain.Case, error) {
	caseRef := strings.TrimSpace(caseExternalRef)
	if caseRef == "" {
		return nil, domain.ErrInvalidCaseRef
	}
	record, err := s.cases.FindByExternalRef(ctx, s.db, caseRef)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrDependencyNotFound
	}
	return record, nil
}

func parseOrigin(raw string) (domain.MessageOrigin, error) {
	switch domain.MessageOrigin(strings.TrimSpace(raw)) {
	case domain.OriginUser:
		return domain.OriginUser, nil
	case domain.OriginAdmin:
		return domain.OriginAdmin, nil
	default:
		return "", domain.ErrInvalidOrigin
	}
}

func routerOrigin(origin domain.MessageOrigin) notification.Origin {
	if origin == domain.OriginAdmin {
		return notification.OriginAdmin
	}
	return notification.OriginUser
}
