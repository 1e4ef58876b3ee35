package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/set-night/memoirbot/internal/dispatch"
)

// ActionPrefix marks callback data that replays a text message.
const ActionPrefix = "act:"

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// URLButton creates a URL inline keyboard button.
func URLButton(text, url string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text: text,
		URL:  url,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// ButtonRow creates a row of inline buttons.
func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// MessageKeyboard lays out links one per row and actions on a shared last
// row. It returns nil when msg has no buttons.
func MessageKeyboard(msg dispatch.Message) *models.InlineKeyboardMarkup {
	if len(msg.Links) == 0 && len(msg.Actions) == 0 {
		return nil
	}
	var rows [][]models.InlineKeyboardButton
	for _, l := range msg.Links {
		rows = append(rows, ButtonRow(URLButton(l.Label, l.URL)))
	}
	if len(msg.Actions) > 0 {
		var row []models.InlineKeyboardButton
		for _, a := range msg.Actions {
			row = append(row, InlineButton(a.Label, ActionPrefix+a.Text))
		}
		rows = append(rows, row)
	}
	return InlineKeyboard(rows...)
}

// ParseAction returns the text an action button stands for.
func ParseAction(data string) (string, bool) {
	text, ok := strings.CutPrefix(data, ActionPrefix)
	if !ok || text == "" {
		return "", false
	}
	return text, true
}
