package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/casebridge/internal/actor"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/smallbiznis/casebridge/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func New(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// RecordChange appends a mutation to the audit trail. A write failure is
// logged at warn level and swallowed: the mutation already committed and its
// success takes precedence over audit durability.
func (s *Service) RecordChange(ctx context.Context, change auditdomain.Change) {
	tableName := strings.TrimSpace(change.TableName)
	if tableName == "" || strings.TrimSpace(change.RecordID) == "" {
		s.log.Warn("audit change dropped: missing table or record id",
			zap.String("table", change.TableName))
		return
	}

	entry := auditdomain.AuditLog{
		ID:          s.genID.Generate(),
		Table:       tableName,
		RecordID:    strings.TrimSpace(change.RecordID),
		Operation:   change.Operation,
		Field:       change.Field,
		OldValue:    change.OldValue,
		NewValue:    change.NewValue,
		Actor:       actor.FromContext(ctx).String(),
		Description: change.Description,
		CreatedAt:   s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit entry",
			zap.String("table", entry.Table),
			zap.String("record_id", entry.RecordID),
			zap.String("operation", string(entry.Operation)),
			zap.Error(err),
		)
	}
}

// RecordView appends a VIEW entry unless the same actor has already viewed
// the same record; repeated views never duplicate the trail.
func (s *Service) RecordView(ctx context.Context, tableName, recordID string) {
	tableName = strings.TrimSpace(tableName)
	recordID = strings.TrimSpace(recordID)
	if tableName == "" || recordID == "" {
		return
	}

	who := actor.FromContext(ctx).String()
	seen, err := s.repo.HasView(ctx, s.db, tableName, recordID, who)
	if err != nil {
		s.log.Warn("failed to check prior view", zap.Error(err))
		return
	}
	if seen {
		return
	}

	entry := auditdomain.AuditLog{
		ID:        s.genID.Generate(),
		Table:     tableName,
		RecordID:  recordID,
		Operation: auditdomain.OperationView,
		Actor:     who,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write view audit entry", zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var cursor *auditdomain.ListCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.ListCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		TableName: req.TableName,
		RecordID:  req.RecordID,
		Operation: req.Operation,
		Actor:     req.Actor,
		StartAt:   req.StartAt,
		EndAt:     req.EndAt,
		Cursor:    cursor,
		Limit:     pageSize,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *auditdomain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	return auditdomain.ListAuditLogResponse{PageInfo: *pageInfo, AuditLogs: logs}, nil
}
