package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/casebridge/internal/activity/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertActivity(ctx context.Context, db *gorm.DB, activity *domain.Activity) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO activities (
			id, case_id, external_ref, type, description, occurred_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		activity.ID,
		activity.CaseID,
		activity.ExternalRef,
		activity.Type,
		activity.Description,
		activity.OccurredAt,
		activity.CreatedAt,
	).Error
}

func (r *repo) FindActivityByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*domain.Activity, error) {
	var activity domain.Activity
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM activities WHERE external_ref = ?`, externalRef).
		Scan(&activity).Error
	if err != nil {
		return nil, err
	}
	if activity.ID == 0 {
		return nil, nil
	}
	return &activity, nil
}

func (r *repo) ListActivitiesByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]domain.Activity, error) {
	var activities []domain.Activity
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM activities WHERE case_id = ? ORDER BY occurred_at, id`, caseID).
		Scan(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, message *domain.CaseMessage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO case_messages (
			id, case_id, external_ref, origin, author_name, subject, body, sent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		message.ID,
		message.CaseID,
		message.ExternalRef,
		message.Origin,
		message.AuthorName,
		message.Subject,
		message.Body,
		message.SentAt,
		message.CreatedAt,
	).Error
}

func (r *repo) FindMessageByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*domain.CaseMessage, error) {
	var message domain.CaseMessage
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM case_messages WHERE external_ref = ?`, externalRef).
		Scan(&message).Error
	if err != nil {
		return nil, err
	}
	if message.ID == 0 {
		return nil, nil
	}
	return &message, nil
}

func (r *repo) ListMessagesByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]domain.CaseMessage, error) {
	var messages []domain.CaseMessage
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM case_messages WHERE case_id = ? ORDER BY sent_at, id`, caseID).
		Scan(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
