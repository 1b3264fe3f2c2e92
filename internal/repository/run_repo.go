package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sujith-eag/timetable-builder/internal/model"
)

// ErrRunNotFound 运行记录不存在
var ErrRunNotFound = errors.New("运行记录不存在")

// RunFilter 运行记录列表筛选条件
type RunFilter struct {
	Kind       model.RunKind
	Status     string
	Validation string
}

// RunRepository 排课运行记录数据访问接口
type RunRepository interface {
	Create(ctx context.Context, run *model.ScheduleRun) error
	GetByID(ctx context.Context, runID string) (*model.ScheduleRun, error)
	GetLatestByFingerprint(ctx context.Context, fingerprint string) (*model.ScheduleRun, error)
	List(ctx context.Context, filter RunFilter, offset, limit int) ([]model.ScheduleRun, int64, error)
}

// runRepo RunRepository 的 GORM 实现
type runRepo struct {
	db *gorm.DB
}

// NewRunRepo 创建 RunRepository 实例
func NewRunRepo(db *gorm.DB) RunRepository {
	return &runRepo{db: db}
}

// Create 在一个事务内写入运行记录、落位与违反明细
func (r *runRepo) Create(ctx context.Context, run *model.ScheduleRun) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries, violations := run.Entries, run.Violations
		if err := tx.Omit("Entries", "Violations").Create(run).Error; err != nil {
			return err
		}
		for i := range entries {
			entries[i].RunID = run.RunID
		}
		for i := range violations {
			violations[i].RunID = run.RunID
		}
		if len(entries) > 0 {
			if err := tx.CreateInBatches(entries, 200).Error; err != nil {
				return err
			}
		}
		if len(violations) > 0 {
			if err := tx.CreateInBatches(violations, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *runRepo) GetByID(ctx context.Context, runID string) (*model.ScheduleRun, error) {
	var run model.ScheduleRun
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("session_id ASC") }).
		Preload("Violations", func(db *gorm.DB) *gorm.DB { return db.Order("violation_id ASC") }).
		Where("run_id = ?", runID).
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// GetLatestByFingerprint 返回同一问题最近一次求解记录（不含明细）
func (r *runRepo) GetLatestByFingerprint(ctx context.Context, fingerprint string) (*model.ScheduleRun, error) {
	var run model.ScheduleRun
	err := r.db.WithContext(ctx).
		Where("fingerprint = ? AND kind = ?", fingerprint, model.RunSolve).
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *runRepo) List(ctx context.Context, filter RunFilter, offset, limit int) ([]model.ScheduleRun, int64, error) {
	var runs []model.ScheduleRun
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ScheduleRun{})
	if filter.Kind != "" {
		db = db.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Validation != "" {
		db = db.Where("validation = ?", filter.Validation)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Omit("problem", "unplaced", "enrichment").
		Offset(offset).Limit(limit).Order("created_at DESC").Find(&runs).Error
	return runs, total, err
}
