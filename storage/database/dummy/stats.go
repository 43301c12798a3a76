package dummydb

import (
	"context"

	"github.com/trezcool/matembezi/core/stats"
)

type statsRepository struct {
	db *statsTable
}

var _ stats.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(db *DB) stats.Repository {
	return &statsRepository{db: db.stats}
}

func (repo *statsRepository) GetStateAnswers(_ context.Context, key stats.Key) (stats.StateAnswers, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	sa, ok := repo.db.answers[key.String()]
	if !ok {
		return stats.StateAnswers{}, stats.ErrStateAnswersNotFound
	}
	sa.Answers = append([]stats.Answer{}, sa.Answers...)
	return sa, nil
}

func (repo *statsRepository) SaveStateAnswers(_ context.Context, sa stats.StateAnswers) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	sa.Answers = append([]stats.Answer{}, sa.Answers...)
	repo.db.answers[sa.Key.String()] = sa
	return nil
}

func (repo *statsRepository) SaveCalcOutput(_ context.Context, out stats.CalcOutput) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.calcOutputs[out.ID()] = out
	return nil
}

func (repo *statsRepository) GetCalcOutput(_ context.Context, key stats.Key, calculationID string) (stats.CalcOutput, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	out, ok := repo.db.calcOutputs[stats.CalcOutput{Key: key, CalculationID: calculationID}.ID()]
	if !ok {
		return stats.CalcOutput{}, stats.ErrCalcOutputNotFound
	}
	return out, nil
}

func (repo *statsRepository) IncrementRuleAnswer(_ context.Context, explorationID, stateName, ruleStr, answer string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	id := stats.RuleAnswerLogID(explorationID, stateName, ruleStr)
	log, ok := repo.db.ruleLogs[id]
	if !ok {
		log = stats.NewRuleAnswerLog(explorationID, stateName, ruleStr)
	}
	log.Answers[answer]++
	repo.db.ruleLogs[id] = log
	return nil
}

func (repo *statsRepository) GetRuleAnswerLogs(
	_ context.Context,
	explorationID, stateName string,
	ruleStrs []string,
) ([]stats.RuleAnswerLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	logs := make([]stats.RuleAnswerLog, 0, len(ruleStrs))
	for _, r := range ruleStrs {
		log, ok := repo.db.ruleLogs[stats.RuleAnswerLogID(explorationID, stateName, r)]
		if !ok {
			log = stats.NewRuleAnswerLog(explorationID, stateName, r)
		}
		answers := make(map[string]int, len(log.Answers))
		for a, c := range log.Answers {
			answers[a] = c
		}
		log.Answers = answers
		logs = append(logs, log)
	}
	return logs, nil
}
