package menusync

import (
	"bufio"
	"io"
	"strings"
)

const maxEventSize = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	Name string
	Data string
	ID   string
}

// readEvents parses a text/event-stream body and calls fn for every
// dispatched event. Comment lines (keep-alives) are skipped. It returns when
// the stream ends.
func readEvents(r io.Reader, fn func(Event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxEventSize)

	var ev Event
	var data []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if ev.Name != "" || len(data) > 0 {
				if ev.Name == "" {
					ev.Name = "message"
				}
				ev.Data = strings.Join(data, "\n")
				fn(ev)
			}
			ev = Event{}
			data = nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
		case "id":
			ev.ID = value
		}
	}
	return sc.Err()
}
