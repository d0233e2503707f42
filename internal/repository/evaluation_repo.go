package repository

import (
	"context"
	"slices"
	"sync"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/hackathon-judge/internal/models"
)

// EvaluationRepository is the append-only store of judged submissions.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	GetByID(ctx context.Context, id uint) (models.Evaluation, error)
	List(ctx context.Context) ([]models.Evaluation, error)
}

// NewEvaluationRepository constructs a gorm backed evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

type evaluationRepository struct {
	db *gorm.DB
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.WithContext(ctx).First(&evaluation, id).Error; err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) List(ctx context.Context) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&evaluations).Error; err != nil {
		return nil, err
	}
	return evaluations, nil
}

// NewMemoryEvaluationRepository returns an in-process repository used by the
// batch CLI. Missing rows report gorm.ErrRecordNotFound like the gorm one.
func NewMemoryEvaluationRepository() EvaluationRepository {
	return &memoryEvaluationRepository{}
}

type memoryEvaluationRepository struct {
	mu   sync.RWMutex
	rows []models.Evaluation
}

func (r *memoryEvaluationRepository) Create(_ context.Context, evaluation *models.Evaluation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	evaluation.ID = uint(len(r.rows) + 1)
	r.rows = append(r.rows, cloneEvaluation(*evaluation))
	return nil
}

func (r *memoryEvaluationRepository) GetByID(_ context.Context, id uint) (models.Evaluation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == 0 || int(id) > len(r.rows) {
		return models.Evaluation{}, gorm.ErrRecordNotFound
	}
	return cloneEvaluation(r.rows[id-1]), nil
}

func (r *memoryEvaluationRepository) List(_ context.Context) ([]models.Evaluation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Evaluation, len(r.rows))
	for i, row := range r.rows {
		out[i] = cloneEvaluation(row)
	}
	return out, nil
}

// cloneEvaluation copies the JSON columns too; their slices would otherwise
// be shared with the stored row.
func cloneEvaluation(e models.Evaluation) models.Evaluation {
	verification := e.Verification.Data()
	verification.Verified = slices.Clone(verification.Verified)
	verification.Unverified = slices.Clone(verification.Unverified)

	e.Scores = datatypes.NewJSONType(slices.Clone(e.Scores.Data()))
	e.Verification = datatypes.NewJSONType(verification)
	e.Warnings = datatypes.NewJSONType(slices.Clone(e.Warnings.Data()))
	return e
}
