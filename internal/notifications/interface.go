package notifications

import "github.com/conversationai/harassment-manager/internal/report"

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendReportSummary(snapshot report.Snapshot) error
}
