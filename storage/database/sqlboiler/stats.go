package boiledrepos

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/stats"
)

type stateAnswersModel struct {
	ID                 string    `boil:"id"`
	ExplorationID      string    `boil:"exploration_id"`
	ExplorationVersion int       `boil:"exploration_version"`
	StateName          string    `boil:"state_name"`
	InteractionID      string    `boil:"interaction_id"`
	Answers            null.JSON `boil:"answers"`
}

type calcOutputModel struct {
	ID                 string    `boil:"id"`
	ExplorationID      string    `boil:"exploration_id"`
	ExplorationVersion int       `boil:"exploration_version"`
	StateName          string    `boil:"state_name"`
	CalculationID      string    `boil:"calculation_id"`
	Outputs            null.JSON `boil:"outputs"`
}

type ruleAnswerLogModel struct {
	ID            string    `boil:"id"`
	ExplorationID string    `boil:"exploration_id"`
	StateName     string    `boil:"state_name"`
	RuleStr       string    `boil:"rule_str"`
	Answers       null.JSON `boil:"answers"`
}

type statsRepository struct {
	repository
}

var _ stats.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(exec core.DBExecutor) stats.Repository {
	return &statsRepository{repository{exec: exec}}
}

func (repo statsRepository) GetStateAnswers(ctx context.Context, key stats.Key) (stats.StateAnswers, error) {
	var m stateAnswersModel
	err := queries.Raw(`SELECT id, exploration_id, exploration_version, state_name, interaction_id, answers
		FROM state_answers WHERE id = $1`, key.String()).Bind(ctx, repo.exec, &m)
	if err != nil {
		return stats.StateAnswers{}, trapNoRowsErr(err, stats.ErrStateAnswersNotFound, "getting state answers")
	}
	sa := stats.NewStateAnswers(key, m.InteractionID)
	if err = m.Answers.Unmarshal(&sa.Answers); err != nil {
		return stats.StateAnswers{}, errors.Wrapf(err, "decoding answers of %s", key)
	}
	if sa.Answers == nil {
		sa.Answers = []stats.Answer{}
	}
	return sa, nil
}

func (repo statsRepository) SaveStateAnswers(ctx context.Context, sa stats.StateAnswers) error {
	answers, err := json.Marshal(sa.Answers)
	if err != nil {
		return errors.Wrap(err, "encoding answers")
	}
	_, err = queries.Raw(`INSERT INTO state_answers (id, exploration_id, exploration_version, state_name, interaction_id, answers)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET interaction_id = EXCLUDED.interaction_id, answers = EXCLUDED.answers`,
		sa.Key.String(), sa.ExplorationID, sa.ExplorationVersion, sa.StateName, sa.InteractionID, null.JSONFrom(answers),
	).ExecContext(ctx, repo.exec)
	return errors.Wrap(err, "saving state answers")
}

func (repo statsRepository) SaveCalcOutput(ctx context.Context, out stats.CalcOutput) error {
	outputs, err := json.Marshal(out.Outputs)
	if err != nil {
		return errors.Wrap(err, "encoding calculation outputs")
	}
	_, err = queries.Raw(`INSERT INTO calc_output (id, exploration_id, exploration_version, state_name, calculation_id, outputs)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET outputs = EXCLUDED.outputs`,
		out.ID(), out.ExplorationID, out.ExplorationVersion, out.StateName, out.CalculationID, null.JSONFrom(outputs),
	).ExecContext(ctx, repo.exec)
	return errors.Wrap(err, "saving calculation output")
}

func (repo statsRepository) GetCalcOutput(ctx context.Context, key stats.Key, calculationID string) (stats.CalcOutput, error) {
	out := stats.CalcOutput{Key: key, CalculationID: calculationID}
	var m calcOutputModel
	err := queries.Raw(`SELECT id, exploration_id, exploration_version, state_name, calculation_id, outputs
		FROM calc_output WHERE id = $1`, out.ID()).Bind(ctx, repo.exec, &m)
	if err != nil {
		return stats.CalcOutput{}, trapNoRowsErr(err, stats.ErrCalcOutputNotFound, "getting calculation output")
	}
	if err = m.Outputs.Unmarshal(&out.Outputs); err != nil {
		return stats.CalcOutput{}, errors.Wrapf(err, "decoding output %s", out.ID())
	}
	return out, nil
}

// IncrementRuleAnswer bumps the counter inside the JSONB document, so concurrent hits are not lost.
func (repo statsRepository) IncrementRuleAnswer(ctx context.Context, explorationID, stateName, ruleStr, answer string) error {
	_, err := queries.Raw(`INSERT INTO rule_answer_log (id, exploration_id, state_name, rule_str, answers)
		VALUES ($1, $2, $3, $4, jsonb_build_object($5::text, 1))
		ON CONFLICT (id) DO UPDATE SET answers = jsonb_set(
			rule_answer_log.answers,
			ARRAY[$5::text],
			to_jsonb(COALESCE((rule_answer_log.answers ->> $5::text)::int, 0) + 1))`,
		stats.RuleAnswerLogID(explorationID, stateName, ruleStr), explorationID, stateName, ruleStr, answer,
	).ExecContext(ctx, repo.exec)
	return errors.Wrap(err, "incrementing rule answer")
}

func (repo statsRepository) GetRuleAnswerLogs(
	ctx context.Context,
	explorationID, stateName string,
	ruleStrs []string,
) ([]stats.RuleAnswerLog, error) {
	logs := make([]stats.RuleAnswerLog, 0, len(ruleStrs))
	if len(ruleStrs) == 0 {
		return logs, nil
	}

	var (
		args params
		ids  []string
	)
	for _, r := range ruleStrs {
		ids = append(ids, args.add(stats.RuleAnswerLogID(explorationID, stateName, r)))
	}
	var models []*ruleAnswerLogModel
	err := queries.Raw(`SELECT id, exploration_id, state_name, rule_str, answers FROM rule_answer_log WHERE id IN (`+
		joinPlaceholders(ids)+`)`, args...).Bind(ctx, repo.exec, &models)
	if err != nil {
		return nil, errors.Wrap(err, "getting rule answer logs")
	}
	byID := make(map[string]*ruleAnswerLogModel, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}

	for _, r := range ruleStrs {
		log := stats.NewRuleAnswerLog(explorationID, stateName, r)
		if m, ok := byID[log.ID()]; ok {
			if err = m.Answers.Unmarshal(&log.Answers); err != nil {
				return nil, errors.Wrapf(err, "decoding rule answer log %s", m.ID)
			}
		}
		logs = append(logs, log)
	}
	return logs, nil
}
