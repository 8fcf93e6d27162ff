package handlers

import (
	"fmt"

	"github.com/Strob0t/dockside/internal/bot"
	"github.com/Strob0t/dockside/internal/session"
)

// KeyboardKind names a reply keyboard layout. The explicit map replaces
// any dynamic lookup of keyboard definitions by attribute name.
type KeyboardKind string

const (
	KeyboardMain   KeyboardKind = "main"
	KeyboardDocker KeyboardKind = "docker"
	KeyboardAuth   KeyboardKind = "auth"
)

// keyboards is the static reply-keyboard table.
var keyboards = map[KeyboardKind]*bot.Keyboard{
	KeyboardMain: {
		Reply: [][]bot.ReplyButton{
			{{Text: "Load average"}, {Text: "Memory load"}, {Text: "Sensors"}},
			{{Text: "Process"}, {Text: "Uptime"}, {Text: "File system"}},
			{{Text: "Network"}, {Text: "About me"}, {Text: "Docker"}},
		},
	},
	KeyboardDocker: {
		Reply: [][]bot.ReplyButton{
			{{Text: "Containers"}, {Text: "Images"}},
			{{Text: "Back to main menu"}},
		},
	},
	KeyboardAuth: {
		Reply: [][]bot.ReplyButton{
			{{Text: "Enter 2FA code"}, {Text: "Get QR-code for 2FA app"}},
			{{Text: "Back to main menu"}},
		},
	},
}

// keyboardFor returns the named reply keyboard.
func keyboardFor(kind KeyboardKind) *bot.Keyboard {
	return keyboards[kind]
}

// containerListKeyboard builds one inline row per container: full stats,
// logs, and manage (the latter carrying the caller's id for the ownership
// check on click).
func containerListKeyboard(names []string, userID int64) *bot.Keyboard {
	rows := make([][]bot.InlineButton, 0, len(names)+1)
	for _, name := range names {
		rows = append(rows, []bot.InlineButton{
			{Text: name + " stats", CallbackData: "__get_full__:" + name},
			{Text: "logs", CallbackData: "__get_logs__:" + name},
			{Text: "manage", CallbackData: fmt.Sprintf("__manage__:%s:%d", name, userID)},
		})
	}
	return &bot.Keyboard{Inline: rows}
}

// manageKeyboard builds the per-container action menu.
func manageKeyboard(name string, userID int64) *bot.Keyboard {
	return &bot.Keyboard{Inline: [][]bot.InlineButton{
		{
			{Text: "Start", CallbackData: fmt.Sprintf("__start__:%s:%d", name, userID)},
			{Text: "Stop", CallbackData: fmt.Sprintf("__stop__:%s:%d", name, userID)},
		},
		{
			{Text: "Restart", CallbackData: fmt.Sprintf("__restart__:%s:%d", name, userID)},
			{Text: "Rename", CallbackData: fmt.Sprintf("__rename__:%s:%d", name, userID)},
		},
		{
			{Text: "Back", CallbackData: "back_to_containers"},
		},
	}}
}

// refererKeyboard rebuilds the keyboard that re-enters the flow a user
// was attempting before the auth gate interrupted them.
func refererKeyboard(ref *session.Referer) *bot.Keyboard {
	if ref == nil {
		return nil
	}
	switch ref.Kind {
	case session.HandlerCallbackQuery:
		return &bot.Keyboard{Inline: [][]bot.InlineButton{
			{{Text: "Continue where you left off", CallbackData: ref.Data}},
		}}
	case session.HandlerMessage:
		return &bot.Keyboard{Reply: [][]bot.ReplyButton{
			{{Text: ref.Data}},
		}}
	}
	return nil
}
