package dto

import (
	"time"

	"github.com/noah-isme/hackathon-judge/internal/claims"
	"github.com/noah-isme/hackathon-judge/internal/models"
	"github.com/noah-isme/hackathon-judge/internal/report"
	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

// EvaluationCreateRequest describes the text fields of the multipart
// submission form. Files are read separately by the handler.
type EvaluationCreateRequest struct {
	ProjectName      string `form:"projectName"`
	Description      string `form:"description"`
	CodeSource       string `form:"codeSource"`
	GitHubURL        string `form:"githubUrl"`
	ManualCode       string `form:"manualCode"`
	PresentationText string `form:"presentationText"`
}

// BatchEntry is one submission of a batch manifest or a queued evaluation.
// Paths are resolved on the machine that runs the evaluation, so only
// manifests loaded by the CLI may use them.
type BatchEntry struct {
	Name            string `yaml:"name" json:"name" validate:"required,max=255"`
	DescriptionFile string `yaml:"description_file" json:"description_file,omitempty"`
	Description     string `yaml:"description" json:"description,omitempty"`
	CodeDir         string `yaml:"code_dir" json:"code_dir,omitempty"`
	GitHubURL       string `yaml:"github_url" json:"github_url,omitempty" validate:"omitempty,url"`
	CodeFile        string `yaml:"code_file" json:"code_file,omitempty"`
	Code            string `yaml:"code" json:"code,omitempty"`
	Video           string `yaml:"video" json:"video,omitempty"`
	TranscriptFile  string `yaml:"transcript_file" json:"transcript_file,omitempty"`
	Transcript      string `yaml:"transcript" json:"transcript,omitempty"`
}

// LocalPaths returns the names of the path fields set on e.
func (e BatchEntry) LocalPaths() []string {
	var fields []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"description_file", e.DescriptionFile},
		{"code_dir", e.CodeDir},
		{"code_file", e.CodeFile},
		{"video", e.Video},
		{"transcript_file", e.TranscriptFile},
	} {
		if field.value != "" {
			fields = append(fields, field.name)
		}
	}
	return fields
}

// BatchEnqueueRequest is the JSON body of the batch endpoint.
type BatchEnqueueRequest struct {
	Submissions []BatchEntry `json:"submissions" validate:"required,min=1,max=500,dive"`
}

// BatchEnqueueResponse lists the queued task ids in request order.
type BatchEnqueueResponse struct {
	TaskIDs []string `json:"task_ids"`
}

// CriterionScoreResponse is one scored criterion.
type CriterionScoreResponse struct {
	Criterion string  `json:"criterion"`
	Label     string  `json:"label"`
	Weight    float64 `json:"weight"`
	Value     float64 `json:"value"`
	Evidence  string  `json:"evidence"`
}

// VerificationResponse reports the claim check.
type VerificationResponse struct {
	Score      float64  `json:"score"`
	Verified   []string `json:"verified"`
	Unverified []string `json:"unverified"`
}

// EvaluationResponse is returned to API clients for a judged submission.
type EvaluationResponse struct {
	ID           uint                     `json:"id"`
	ProjectName  string                   `json:"project_name"`
	Description  string                   `json:"description"`
	CodeLocation string                   `json:"code_location,omitempty"`
	VideoURL     string                   `json:"video_url,omitempty"`
	SubmittedBy  string                   `json:"submitted_by,omitempty"`
	SubmittedAt  time.Time                `json:"submitted_at"`
	FinalScore   float64                  `json:"final_score"`
	Rating       string                   `json:"rating"`
	ClaimPenalty float64                  `json:"claim_penalty"`
	Scores       []CriterionScoreResponse `json:"scores"`
	Verification VerificationResponse     `json:"verification"`
	Warnings     []string                 `json:"warnings"`
}

// EvaluationSummary is the list view of an evaluation.
type EvaluationSummary struct {
	ID          uint      `json:"id"`
	ProjectName string    `json:"project_name"`
	FinalScore  float64   `json:"final_score"`
	Rating      string    `json:"rating"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// LeaderboardEntryResponse is one ranked row.
type LeaderboardEntryResponse struct {
	Rank         int                `json:"rank"`
	ID           uint               `json:"id"`
	ProjectName  string             `json:"project_name"`
	FinalScore   float64            `json:"final_score"`
	Rating       string             `json:"rating"`
	Scores       map[string]float64 `json:"scores"`
	Verification float64            `json:"verification_score"`
}

// LeaderboardResponse is the JSON leaderboard.
type LeaderboardResponse struct {
	Stats   report.Stats               `json:"stats"`
	Entries []LeaderboardEntryResponse `json:"entries"`
}

// NewEvaluationResponse converts a stored evaluation into its API form.
func NewEvaluationResponse(model models.Evaluation) EvaluationResponse {
	result := model.Result()
	weights := scoring.DefaultWeights()

	scores := make([]CriterionScoreResponse, 0, len(result.Scores))
	for _, s := range result.Scores {
		scores = append(scores, CriterionScoreResponse{
			Criterion: string(s.Criterion),
			Label:     s.Criterion.Title(),
			Weight:    weights[s.Criterion],
			Value:     s.Value,
			Evidence:  s.Evidence,
		})
	}

	return EvaluationResponse{
		ID:           model.ID,
		ProjectName:  model.ProjectName,
		Description:  model.Description,
		CodeLocation: model.CodeLocation,
		VideoURL:     model.VideoURL,
		SubmittedBy:  model.SubmittedBy,
		SubmittedAt:  model.SubmittedAt,
		FinalScore:   model.FinalScore,
		Rating:       model.Rating,
		ClaimPenalty: model.ClaimPenalty,
		Scores:       scores,
		Verification: VerificationResponse{
			Score:      result.Verification.Score,
			Verified:   claimTexts(result.Verification.Verified),
			Unverified: claimTexts(result.Verification.Unverified),
		},
		Warnings: result.Warnings,
	}
}

// NewEvaluationSummaries converts stored evaluations into list rows.
func NewEvaluationSummaries(items []models.Evaluation) []EvaluationSummary {
	summaries := make([]EvaluationSummary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, EvaluationSummary{
			ID:          item.ID,
			ProjectName: item.ProjectName,
			FinalScore:  item.FinalScore,
			Rating:      item.Rating,
			SubmittedAt: item.SubmittedAt,
		})
	}
	return summaries
}

// NewLeaderboardResponse ranks stored evaluations.
func NewLeaderboardResponse(items []models.Evaluation) LeaderboardResponse {
	results := make([]scoring.Result, 0, len(items))
	for _, item := range items {
		results = append(results, item.Result())
	}

	entries := make([]LeaderboardEntryResponse, 0, len(results))
	for _, e := range report.Rank(results) {
		scores := make(map[string]float64, len(e.Result.Scores))
		for _, s := range e.Result.Scores {
			scores[string(s.Criterion)] = s.Value
		}
		entries = append(entries, LeaderboardEntryResponse{
			Rank:         e.Rank,
			ID:           items[e.Position].ID,
			ProjectName:  e.Result.Submission.ProjectName,
			FinalScore:   e.Result.FinalScore,
			Rating:       e.Result.Rating,
			Scores:       scores,
			Verification: e.Result.Verification.Score,
		})
	}

	return LeaderboardResponse{Stats: report.ComputeStats(results), Entries: entries}
}

func claimTexts(items []claims.Claim) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Text)
	}
	return out
}
