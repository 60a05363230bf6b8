package cache

import (
	"fmt"
	"time"
)

// RunEntry is one feed outcome recorded for a pipeline run.
type RunEntry struct {
	Date   string
	Handle string
	OK     bool
	Reason string
}

// RunSummary aggregates the run log for a single date.
type RunSummary struct {
	Date       string
	Successful int
	Failed     int
}

// RecordRun stores the outcome of one feed fetch. Re-running a date
// overwrites the previous entry for the same handle.
func (c *Cache) RecordRun(entry RunEntry) error {
	ok := 0
	if entry.OK {
		ok = 1
	}
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO run_log (date, handle, ok, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.Date, entry.Handle, ok, entry.Reason, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record run entry: %w", err)
	}
	return nil
}

// RunFailures returns the failed entries logged for a date, handle order.
func (c *Cache) RunFailures(date string) ([]RunEntry, error) {
	rows, err := c.db.Query(
		"SELECT handle, reason FROM run_log WHERE date = ? AND ok = 0 ORDER BY handle",
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query run log: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		entry := RunEntry{Date: date}
		if err := rows.Scan(&entry.Handle, &entry.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan run entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RunStats summarizes the run log for a date.
func (c *Cache) RunStats(date string) (RunSummary, error) {
	summary := RunSummary{Date: date}
	err := c.db.QueryRow(`
		SELECT
			COALESCE(SUM(ok), 0),
			COALESCE(SUM(1 - ok), 0)
		FROM run_log WHERE date = ?
	`, date).Scan(&summary.Successful, &summary.Failed)
	if err != nil {
		return summary, fmt.Errorf("failed to query run stats: %w", err)
	}
	return summary, nil
}
