package page

import (
	"fmt"
	"strings"
)

// Notification is one step of a replay script
type Notification string

const (
	NotifyLoad   Notification = "load"
	NotifyScroll Notification = "scroll"
	NotifyClick  Notification = "click"
)

// ParseScript parses a comma separated script such as "load,scroll,scroll,click".
// Whitespace around steps is ignored; unknown steps are an error.
func ParseScript(script string) ([]Notification, error) {
	var steps []Notification
	for i, raw := range strings.Split(script, ",") {
		step := Notification(strings.ToLower(strings.TrimSpace(raw)))
		switch step {
		case NotifyLoad, NotifyScroll, NotifyClick:
			steps = append(steps, step)
		case "":
			continue
		default:
			return nil, fmt.Errorf("unknown notification %q at step %d", raw, i+1)
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("replay script is empty")
	}
	return steps, nil
}

// Replay fires each notification in order
func (s *Session) Replay(steps []Notification) {
	for _, step := range steps {
		switch step {
		case NotifyLoad:
			s.Load()
		case NotifyScroll:
			s.Scroll()
		case NotifyClick:
			s.Click()
		}
	}
}
