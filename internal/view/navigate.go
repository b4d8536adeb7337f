package view

import "github.com/dshills/taskaroo/internal/task"

// Next returns the first record in file whose line is strictly after line.
// records must be in view order. ok is false when there is none.
func Next(records []task.Record, file string, line int) (rec task.Record, ok bool) {
	for _, r := range records {
		if r.Location.Path == file && r.Location.Line > line {
			return r, true
		}
	}
	return task.Record{}, false
}

// Previous returns the closest record in file whose line is strictly
// before line. records must be in view order. ok is false when there is none.
func Previous(records []task.Record, file string, line int) (rec task.Record, ok bool) {
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.Location.Path == file && r.Location.Line < line {
			return r, true
		}
	}
	return task.Record{}, false
}

// InFile returns the records of one file, in view order.
func InFile(records []task.Record, file string) []task.Record {
	var out []task.Record
	for _, r := range records {
		if r.Location.Path == file {
			out = append(out, r)
		}
	}
	return out
}
