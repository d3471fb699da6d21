package datastore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/types"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// SampleRecord is the row of a sample, the sample itself is kept as json
type SampleRecord struct {
	ID        uint   `gorm:"primaryKey"`
	TrialID   string `gorm:"index;not null"`
	TickID    uint64 `gorm:"not null"`
	Timestamp time.Time
	Payload   []byte `gorm:"type:bytea"`
}

func (SampleRecord) TableName() string {
	return "samples"
}

type SQLDatastore struct {
	db *gorm.DB
}

var _ Datastore = &SQLDatastore{}

// OpenPostgres connects to the database and migrates the samples table
func OpenPostgres(dsn string) (*SQLDatastore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	return NewSQLDatastore(db)
}

func NewSQLDatastore(db *gorm.DB) (*SQLDatastore, error) {
	if err := db.AutoMigrate(&SampleRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrating samples table")
	}
	return &SQLDatastore{db: db}, nil
}

func (s *SQLDatastore) AddSample(ctx context.Context, sample *types.Sample) error {
	bs, err := json.Marshal(sample)
	if err != nil {
		return errors.Wrap(err, "encoding sample")
	}
	record := &SampleRecord{
		TrialID:   sample.TrialID,
		TickID:    sample.TickID,
		Timestamp: sample.Timestamp,
		Payload:   bs,
	}
	return errors.Wrapf(s.db.WithContext(ctx).Create(record).Error, "adding sample of trial %s", sample.TrialID)
}

func (s *SQLDatastore) Samples(ctx context.Context, trialID string) ([]*types.Sample, error) {
	var records []SampleRecord
	err := s.db.WithContext(ctx).
		Where("trial_id = ?", trialID).
		Order("tick_id ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrapf(err, "reading samples of trial %s", trialID)
	}
	if len(records) == 0 {
		return nil, errors.Wrap(ErrTrialNotFound, trialID)
	}
	samples := make([]*types.Sample, len(records))
	for i, r := range records {
		sample := &types.Sample{}
		if err := json.Unmarshal(r.Payload, sample); err != nil {
			return nil, errors.Wrapf(err, "decoding sample %d of trial %s", r.ID, trialID)
		}
		samples[i] = sample
	}
	return samples, nil
}

func (s *SQLDatastore) Trials(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&SampleRecord{}).
		Distinct("trial_id").
		Order("trial_id").
		Pluck("trial_id", &ids).Error
	return ids, errors.Wrap(err, "listing trials")
}

func (s *SQLDatastore) DeleteTrial(ctx context.Context, trialID string) error {
	result := s.db.WithContext(ctx).Where("trial_id = ?", trialID).Delete(&SampleRecord{})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "deleting trial %s", trialID)
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(ErrTrialNotFound, trialID)
	}
	return nil
}
