package scheduler

import (
	"fmt"

	"github.com/angelmondragon/dontforget-backend/internal/items"
)

// ProximityContent derives the user-facing text of a proximity alert.
func ProximityContent(item items.Item) (title, body string) {
	title = "Don't forget!"
	place := "a saved place"
	if item.Location != nil && item.Location.Name != "" {
		place = item.Location.Name
	}
	body = fmt.Sprintf("You're near %s. Don't forget %s", place, item.Title)
	if item.ValueLabel != nil && *item.ValueLabel != "" {
		body = fmt.Sprintf("%s (%s)", body, *item.ValueLabel)
	}
	return title, body + "!"
}

// expiryContent derives the user-facing text of one countdown alert.
func expiryContent(item items.Item, offsetDays int) (title, body string) {
	title = fmt.Sprintf("%s expires %s", item.Title, expiryPhrase(offsetDays))
	body = "Use it before it's gone."
	if item.ValueLabel != nil && *item.ValueLabel != "" {
		body = fmt.Sprintf("You still have %s. %s", *item.ValueLabel, body)
	}
	return title, body
}

func expiryPhrase(offsetDays int) string {
	switch offsetDays {
	case 7:
		return "in 1 week"
	case 1:
		return "tomorrow"
	case 0:
		return "today"
	default:
		return fmt.Sprintf("in %d days", offsetDays)
	}
}
