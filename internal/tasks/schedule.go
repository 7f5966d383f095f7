package tasks

import "github.com/anonto42/trendpulse/backend/pkg/config"

// ScheduleEntry is one periodic task: a standard five-field cron spec in UTC.
type ScheduleEntry struct {
	Name   string      `json:"name"`
	Spec   string      `json:"spec"`
	Task   string      `json:"task"`
	Params interface{} `json:"params,omitempty"`
}

// DefaultSchedule is the periodic task table. Twitter has no entry while disabled.
func DefaultSchedule(retention config.RetentionConfig) []ScheduleEntry {
	return []ScheduleEntry{
		{Name: "fetch-all-trends-every-2-hours", Spec: "0 */2 * * *", Task: FetchAllTrends},
		{Name: "update-youtube-every-3-hours", Spec: "0 */3 * * *", Task: FetchYouTubeTrends},
		{Name: "update-reddit-every-2-hours", Spec: "30 */2 * * *", Task: FetchRedditTrends},
		{
			Name: "clean-old-trends-daily",
			Spec: "0 3 * * *",
			Task: CleanOldTrends,
			Params: CleanupParams{
				MaxAgeDays:            retention.MaxAgeDays,
				MaxRecordsPerPlatform: retention.MaxRecordsPerPlatform,
			},
		},
		{Name: "check-missed-tasks-every-30-minutes", Spec: "*/30 * * * *", Task: CheckMissedTasks},
	}
}
