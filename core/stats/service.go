package stats

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/tasks"
)

const JobRecompute = "stats.recompute"

type Repository interface {
	// GetStateAnswers returns ErrStateAnswersNotFound when nothing was recorded under key.
	GetStateAnswers(ctx context.Context, key Key) (StateAnswers, error)
	// SaveStateAnswers replaces the whole answer log of sa.Key.
	SaveStateAnswers(ctx context.Context, sa StateAnswers) error
	SaveCalcOutput(ctx context.Context, out CalcOutput) error
	GetCalcOutput(ctx context.Context, key Key, calculationID string) (CalcOutput, error)
	// IncrementRuleAnswer adds one hit of answer to a rule answer log, creating the log if needed.
	IncrementRuleAnswer(ctx context.Context, explorationID, stateName, ruleStr, answer string) error
	// GetRuleAnswerLogs returns one log per rule, empty for rules without answers.
	GetRuleAnswerLogs(ctx context.Context, explorationID, stateName string, ruleStrs []string) ([]RuleAnswerLog, error)
}

// RecomputeParams are the params of a JobRecompute job.
type RecomputeParams struct {
	Key
	CalculationID string `json:"calculation_id"`
}

type Service struct {
	repo   Repository
	jobs   tasks.Enqueuer
	logger core.Logger
}

func NewService(repo Repository, jobs tasks.Enqueuer, logger core.Logger) *Service {
	return &Service{repo: repo, jobs: jobs, logger: logger}
}

func (svc *Service) load(ctx context.Context, key Key, interactionID string) (StateAnswers, error) {
	sa, err := svc.repo.GetStateAnswers(ctx, key)
	if core.IsNotFound(err) {
		return NewStateAnswers(key, interactionID), nil
	}
	if err != nil {
		return StateAnswers{}, err
	}
	if sa.InteractionID == "" {
		sa.InteractionID = interactionID
	}
	return sa, nil
}

// RecordAnswer validates and appends one answer to the log of key.
// Concurrent writers to the same key are last-writer-wins.
func (svc *Service) RecordAnswer(ctx context.Context, key Key, interactionID string, a Answer) error {
	return svc.RecordAnswers(ctx, key, interactionID, []Answer{a})
}

// RecordAnswers appends answers to the log of key, all or none.
func (svc *Service) RecordAnswers(ctx context.Context, key Key, interactionID string, answers []Answer) error {
	if err := key.Validate(); err != nil {
		return err
	}
	sa, err := svc.load(ctx, key, interactionID)
	if err != nil {
		return err
	}
	if err = sa.RecordAnswers(answers); err != nil {
		return err
	}
	return svc.repo.SaveStateAnswers(ctx, sa)
}

func (svc *Service) GetStateAnswers(ctx context.Context, key Key) (StateAnswers, error) {
	return svc.repo.GetStateAnswers(ctx, key)
}

func (svc *Service) RecordRuleAnswer(ctx context.Context, explorationID, stateName, ruleStr, answer string) error {
	return svc.repo.IncrementRuleAnswer(ctx, explorationID, stateName, ruleStr, answer)
}

func (svc *Service) GetRuleAnswerLogs(ctx context.Context, explorationID, stateName string, ruleStrs []string) ([]RuleAnswerLog, error) {
	return svc.repo.GetRuleAnswerLogs(ctx, explorationID, stateName, ruleStrs)
}

// Compute runs a calculation over the answers of key and stores (overwrites) its output.
func (svc *Service) Compute(ctx context.Context, key Key, calculationID string) (CalcOutput, error) {
	calc, err := GetCalculation(calculationID)
	if err != nil {
		return CalcOutput{}, err
	}
	sa, err := svc.repo.GetStateAnswers(ctx, key)
	if err != nil {
		return CalcOutput{}, err
	}
	out, err := calc.Calculate(sa)
	if err != nil {
		return CalcOutput{}, err
	}
	if err = svc.repo.SaveCalcOutput(ctx, out); err != nil {
		return CalcOutput{}, errors.Wrapf(err, "saving %s output", calculationID)
	}
	return out, nil
}

func (svc *Service) GetCalcOutput(ctx context.Context, key Key, calculationID string) (CalcOutput, error) {
	return svc.repo.GetCalcOutput(ctx, key, calculationID)
}

// EnqueueRecompute defers Compute to the job workers.
func (svc *Service) EnqueueRecompute(ctx context.Context, key Key, calculationID string) (tasks.Job, error) {
	if err := key.Validate(); err != nil {
		return tasks.Job{}, err
	}
	if _, err := GetCalculation(calculationID); err != nil {
		return tasks.Job{}, err
	}
	return svc.jobs.Enqueue(ctx, JobRecompute, RecomputeParams{Key: key, CalculationID: calculationID})
}

// RecomputeJob is the handler of JobRecompute jobs. Re-running it overwrites the same output.
func (svc *Service) RecomputeJob() tasks.Handler {
	return tasks.HandlerFunc(JobRecompute, func(ctx context.Context, job tasks.Job) error {
		var params RecomputeParams
		if err := job.DecodeParams(&params); err != nil {
			return err
		}
		_, err := svc.Compute(ctx, params.Key, params.CalculationID)
		switch {
		case core.IsNotFound(err):
			return tasks.NewPermanentFailure("State answers missing: %s", params.Key)
		case core.IsValidationError(err):
			return tasks.NewPermanentFailure("Cannot compute %s for %s: %v", params.CalculationID, params.Key, err)
		}
		return err
	})
}
