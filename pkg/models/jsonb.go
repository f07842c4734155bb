package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Scan implements sql.Scanner for jsonb columns.
func (c *ExtractionConfig) Scan(value any) error {
	if value == nil {
		*c = ExtractionConfig{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("extraction_config: unsupported scan type %T", value)
	}
	if len(b) == 0 {
		*c = ExtractionConfig{}
		return nil
	}
	return json.Unmarshal(b, c)
}

// Value implements driver.Valuer for jsonb columns.
func (c ExtractionConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for jsonb columns.
func (p *JobPayload) Scan(value any) error {
	if value == nil {
		*p = JobPayload{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("job_payload: unsupported scan type %T", value)
	}
	if len(b) == 0 {
		*p = JobPayload{}
		return nil
	}
	return json.Unmarshal(b, p)
}

// Value implements driver.Valuer for jsonb columns.
func (p JobPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}
