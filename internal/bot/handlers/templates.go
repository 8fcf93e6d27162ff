package handlers

import (
	"fmt"
	"strings"
	"text/template"
)

// Reply templates, parsed once at init. Rendering failures surface as
// handling errors and collapse to the generic user-facing line upstream.
var replyTemplates = template.Must(template.New("replies").Parse(`
{{define "welcome"}}Hi{{if .Name}}, {{.Name}}{{end}}! I am dockside, your container operations agent.
Use the keyboard below to inspect this host, or /help for the full command list.{{end}}

{{define "help"}}Available commands:
/start - main menu
/help - this message
/back - back to main menu
/docker - container engine menu
/containers - list containers
/images - list images
/qrcode - get the 2FA enrolment QR code
/check_bot_updates - check for a newer bot release

Keyboard buttons cover host vitals (load, memory, sensors, processes, uptime, file systems, network) and container operations.{{end}}

{{define "load_average"}}Load average:
1 min: {{printf "%.2f" .Load1}}
5 min: {{printf "%.2f" .Load5}}
15 min: {{printf "%.2f" .Load15}}{{end}}

{{define "memory"}}Memory load:
Total: {{.Total}}
Available: {{.Available}}
Used: {{.Used}} ({{printf "%.1f" .UsedPercent}}%)
Cached: {{.Cached}}
Shared: {{.Shared}}{{end}}

{{define "swap"}}Swap:
Total: {{.Total}}
Used: {{.Used}} ({{printf "%.1f" .UsedPercent}}%)
Free: {{.Free}}{{end}}

{{define "uptime"}}Uptime: {{.Uptime}}
Booted: {{.BootTime.Format "2006-01-02 15:04:05"}}{{end}}

{{define "about"}}Host: {{.Hostname}}
OS: {{.OS}} ({{.Platform}})
Kernel: {{.KernelVersion}}
Arch: {{.Arch}}
Uptime: {{.Uptime}}{{end}}

{{define "network"}}Network I/O since boot:
Sent: {{.BytesSent}} ({{.PacketsSent}} packets)
Received: {{.BytesRecv}} ({{.PacketsRecv}} packets)
Errors in/out: {{.ErrIn}}/{{.ErrOut}}
Drops in/out: {{.DropIn}}/{{.DropOut}}{{end}}

{{define "process"}}Processes:
Total: {{.Total}}
Running: {{.Running}}
Sleeping: {{.Sleeping}}
Zombie: {{.Zombie}}{{end}}

{{define "auth_success"}}Authentication successful. Your session is valid for 5 minutes.{{end}}

{{define "auth_invalid"}}Invalid TOTP code. Please try again.{{end}}

{{define "auth_blocked"}}Maximum TOTP attempts reached. You are blocked for 5 minutes.{{end}}

{{define "auth_prompt"}}Please send your 6-digit authentication code.{{end}}

{{define "access_denied"}}Access denied. This action requires two-factor authentication.{{end}}
`))

// renderTemplate executes a named reply template against data.
func renderTemplate(name string, data any) (string, error) {
	var sb strings.Builder
	if err := replyTemplates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("handlers: render %s: %w", name, err)
	}
	return sb.String(), nil
}
