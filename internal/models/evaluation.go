package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/hackathon-judge/internal/claims"
	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

// Evaluation is the persisted outcome of judging one submission. Rows are
// only ever inserted; the ID order is the submission order.
type Evaluation struct {
	ID               uint                                         `gorm:"primaryKey" json:"id"`
	ProjectName      string                                       `gorm:"size:255;not null;index" json:"project_name"`
	Description      string                                       `gorm:"type:text" json:"description"`
	CodeLocation     string                                       `gorm:"size:512" json:"code_location,omitempty"`
	PresentationText string                                       `gorm:"type:text" json:"presentation_text,omitempty"`
	VideoURL         string                                       `gorm:"size:512" json:"video_url,omitempty"`
	SubmittedBy      string                                       `gorm:"size:64" json:"submitted_by,omitempty"`
	SubmittedAt      time.Time                                    `gorm:"not null" json:"submitted_at"`
	FinalScore       float64                                      `gorm:"not null;index" json:"final_score"`
	Rating           string                                       `gorm:"size:32;not null" json:"rating"`
	ClaimPenalty     float64                                      `json:"claim_penalty"`
	Scores           datatypes.JSONType[[]scoring.CriterionScore] `json:"scores"`
	Verification     datatypes.JSONType[claims.Verification]      `json:"verification"`
	Warnings         datatypes.JSONType[[]string]                 `json:"warnings"`
	CreatedAt        time.Time                                    `json:"created_at"`
}

// NewEvaluation converts an aggregated result into its persistent form.
func NewEvaluation(result scoring.Result) Evaluation {
	return Evaluation{
		ProjectName:      result.Submission.ProjectName,
		Description:      result.Submission.Description,
		CodeLocation:     result.Submission.CodeLocation,
		PresentationText: result.Submission.PresentationText,
		SubmittedAt:      result.Submission.Timestamp,
		FinalScore:       result.FinalScore,
		Rating:           result.Rating,
		ClaimPenalty:     result.ClaimPenalty,
		Scores:           datatypes.NewJSONType(result.Scores),
		Verification:     datatypes.NewJSONType(result.Verification),
		Warnings:         datatypes.NewJSONType(result.Warnings),
	}
}

// Result rebuilds the aggregated result from the stored row.
func (e Evaluation) Result() scoring.Result {
	warnings := e.Warnings.Data()
	if warnings == nil {
		warnings = []string{}
	}
	return scoring.Result{
		Submission: scoring.Submission{
			ProjectName:      e.ProjectName,
			Description:      e.Description,
			CodeLocation:     e.CodeLocation,
			PresentationText: e.PresentationText,
			Timestamp:        e.SubmittedAt,
		},
		Scores:       e.Scores.Data(),
		Verification: e.Verification.Data(),
		Warnings:     warnings,
		ClaimPenalty: e.ClaimPenalty,
		FinalScore:   e.FinalScore,
		Rating:       e.Rating,
	}
}
