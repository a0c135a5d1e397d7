package history

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// JSONField stores a value as JSON text in a SQLite column.
type JSONField[T any] struct {
	Data T
}

// Scan implements the sql.Scanner interface for reading from database
func (j *JSONField[T]) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.Errorf("cannot scan %T into JSONField", value)
		}
		bytes = []byte(str)
	}

	return json.Unmarshal(bytes, &j.Data)
}

// Value implements the driver.Valuer interface for writing to database
func (j JSONField[T]) Value() (driver.Value, error) {
	data, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

type dbRun struct {
	ID             string              `db:"id"`
	Root           string              `db:"root"`
	DryRun         bool                `db:"dry_run"`
	Threshold      float64             `db:"promotion_threshold"`
	PromotedSkills JSONField[[]string] `db:"promoted_skills"`
	UpdatedCount   int                 `db:"updated_count"`
	UnchangedCount int                 `db:"unchanged_count"`
	FailedCount    int                 `db:"failed_count"`
	StartedAt      time.Time           `db:"started_at"`
	FinishedAt     time.Time           `db:"finished_at"`
}

type dbDirectory struct {
	RunID        string              `db:"run_id"`
	RelPath      string              `db:"rel_path"`
	AgentFile    *string             `db:"agent_file"` // NULL when no file was resolved
	Status       string              `db:"status"`
	Technologies JSONField[[]string] `db:"technologies"`
	Skills       JSONField[[]string] `db:"skills"`
}

func fromRun(r *Run) dbRun {
	return dbRun{
		ID:             r.ID,
		Root:           r.Root,
		DryRun:         r.DryRun,
		Threshold:      r.Threshold,
		PromotedSkills: JSONField[[]string]{Data: nonNil(r.Promoted)},
		UpdatedCount:   r.Updated,
		UnchangedCount: r.Unchanged,
		FailedCount:    r.Failed,
		StartedAt:      r.StartedAt.UTC(),
		FinishedAt:     r.FinishedAt.UTC(),
	}
}

func (d dbRun) toRun() Run {
	return Run{
		ID:         d.ID,
		Root:       d.Root,
		DryRun:     d.DryRun,
		Threshold:  d.Threshold,
		Promoted:   nonNil(d.PromotedSkills.Data),
		Updated:    d.UpdatedCount,
		Unchanged:  d.UnchangedCount,
		Failed:     d.FailedCount,
		StartedAt:  d.StartedAt,
		FinishedAt: d.FinishedAt,
	}
}

func fromDirectory(runID string, d Directory) dbDirectory {
	row := dbDirectory{
		RunID:        runID,
		RelPath:      d.Rel,
		Status:       d.Status,
		Technologies: JSONField[[]string]{Data: nonNil(d.Technologies)},
		Skills:       JSONField[[]string]{Data: nonNil(d.Skills)},
	}
	if d.AgentFile != "" {
		agentFile := d.AgentFile
		row.AgentFile = &agentFile
	}
	return row
}

func (d dbDirectory) toDirectory() Directory {
	dir := Directory{
		Rel:          d.RelPath,
		Status:       d.Status,
		Technologies: nonNil(d.Technologies.Data),
		Skills:       nonNil(d.Skills.Data),
	}
	if d.AgentFile != nil {
		dir.AgentFile = *d.AgentFile
	}
	return dir
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
