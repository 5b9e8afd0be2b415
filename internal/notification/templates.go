package notification

import (
	"bytes"
	"html/template"
)

const layout = `<html>
<head>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background: {{.Accent}}; color: white; padding: 20px; text-align: center; }
.content { padding: 20px; background: #f9f9f9; }
.details { background: white; padding: 15px; margin: 15px 0; border-left: 4px solid {{.Accent}}; }
.footer { text-align: center; margin-top: 20px; color: #666; }
</style>
</head>
<body>
<div class="container">
<div class="header"><h2>{{.Heading}}</h2></div>
<div class="content">
<p>Hello {{.RecipientName}},</p>
{{template "body" .}}
</div>
<div class="footer"><p>This is an automated email from Task Management System</p></div>
</div>
</body>
</html>`

const assignedBody = `{{define "body"}}<p>You have been assigned a new task by {{.AssignedBy}}:</p>
<div class="details">
<h3>{{.TaskTitle}}</h3>
<p><strong>Description:</strong> {{.Description}}</p>
<p><strong>{{.DeadlineText}}</strong></p>
<p><strong>Status:</strong> Pending</p>
</div>
<p>Please log in to your task management system to view and manage this task.</p>{{end}}`

const statusBody = `{{define "body"}}<p>The status of your task has been updated:</p>
<div class="details">
<h3>{{.TaskTitle}}</h3>
<p><strong>Previous Status:</strong> {{.OldStatus}}</p>
<p><strong>New Status:</strong> {{.NewStatus}}</p>
</div>
<p>Please log in to your task management system to view the updated details.</p>{{end}}`

const reminderBody = `{{define "body"}}<p>This is a reminder that your task deadline is approaching:</p>
<div class="details">
<h3>{{.TaskTitle}}</h3>
<p><strong>Deadline:</strong> {{.DeadlineText}}</p>
<p><strong>Days Left:</strong> {{.Days}} day(s)</p>
</div>
<p>Please ensure you complete this task before the deadline.</p>{{end}}`

const overdueBody = `{{define "body"}}<p>Your task is now overdue:</p>
<div class="details">
<h3>{{.TaskTitle}}</h3>
<p><strong>Deadline:</strong> {{.DeadlineText}}</p>
<p><strong>Days Overdue:</strong> {{.Days}} day(s)</p>
</div>
<p>Please complete this task as soon as possible.</p>{{end}}`

var templates = map[Kind]*template.Template{
	KindTaskAssigned:        template.Must(template.Must(template.New("assigned").Parse(layout)).Parse(assignedBody)),
	KindStatusChanged:       template.Must(template.Must(template.New("status").Parse(layout)).Parse(statusBody)),
	KindDeadlineApproaching: template.Must(template.Must(template.New("reminder").Parse(layout)).Parse(reminderBody)),
	KindDeadlinePassed:      template.Must(template.Must(template.New("overdue").Parse(layout)).Parse(overdueBody)),
}

// view is the data handed to every template
type view struct {
	Heading       string
	Accent        template.CSS
	RecipientName string
	TaskTitle     string
	Description   string
	AssignedBy    string
	DeadlineText  string
	OldStatus     string
	NewStatus     string
	Days          int
}

func render(kind Kind, v view) (string, error) {
	var buf bytes.Buffer
	if err := templates[kind].Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
