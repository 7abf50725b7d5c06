// Package notify delivers batch run reports to operators.
package notify

import (
	"fmt"
	"html"
	"strings"

	"crm-tasks/internal/service"
)

// FormatReport renders report as Telegram-flavoured HTML.
func FormatReport(report service.Report) string {
	var sb strings.Builder

	sb.WriteString("📋 <b>Recurring tasks run</b>\n")
	sb.WriteString(fmt.Sprintf("🆔 <code>%s</code>\n", html.EscapeString(report.RunID)))
	sb.WriteString(fmt.Sprintf("🗓 horizon %s\n\n", report.Horizon))

	sb.WriteString(fmt.Sprintf("♻️ %d templates, %d occurrences generated, %d exhausted\n",
		report.Templates, report.Generated, report.Exhausted))
	if report.Interrupted {
		sb.WriteString("⏳ run was interrupted, the next run continues\n")
	}

	if len(report.Failures) == 0 {
		sb.WriteString("✅ no failures\n")
		return strings.TrimSpace(sb.String())
	}

	sb.WriteString(fmt.Sprintf("\n⚠️ <b>%d templates need attention</b>\n", len(report.Failures)))
	for _, f := range report.Failures {
		icon := "⚠️"
		if f.Invalid {
			icon = "🛠"
		}
		title := html.EscapeString(strings.TrimSpace(f.Title))
		sb.WriteString(fmt.Sprintf("%s #%d %s\n", icon, f.TemplateID, title))
		if f.Err != nil {
			sb.WriteString(fmt.Sprintf("   <i>%s</i>\n", html.EscapeString(f.Err.Error())))
		}
	}
	return strings.TrimSpace(sb.String())
}
