package telemetry

import (
	"encoding/json"
	"fmt"
)

// The heterogeneous lists serialize back to their wire shapes (arrays, not
// objects) so a decoded record re-encodes to the same field values the
// device sent, and so the loaders can re-decode forwarded records with the
// standard decoder.

func (e Event) MarshalJSON() ([]byte, error) {
	elems := make([]any, 0, 1+len(e.Pairs))
	elems = append(elems, e.Code)
	for _, p := range e.Pairs {
		elems = append(elems, [2]any{p.Key, p.Value})
	}
	return json.Marshal(elems)
}

func (e *Event) UnmarshalJSON(raw []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return err
	}
	if len(elems) == 0 {
		return fmt.Errorf("empty event entry")
	}
	var code string
	if err := json.Unmarshal(elems[0], &code); err != nil {
		return fmt.Errorf("event code must be a string: %w", err)
	}
	ev := Event{Code: code, Pairs: make([]Pair, 0, len(elems)-1)}
	for _, el := range elems[1:] {
		pair, err := decodePair(el)
		if err != nil {
			return err
		}
		ev.Pairs = append(ev.Pairs, pair)
	}
	*e = ev
	return nil
}

func (s Sensor) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Name, s.Value})
}

func (s *Sensor) UnmarshalJSON(raw []byte) error {
	pair, err := decodePair(raw)
	if err != nil {
		return err
	}
	*s = Sensor{Name: pair.Key, Value: pair.Value}
	return nil
}

func (p ObdPid) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{p.Pid, p.Value})
}

func (p *ObdPid) UnmarshalJSON(raw []byte) error {
	a, b, err := decodeIntPair(raw)
	if err != nil {
		return err
	}
	*p = ObdPid{Pid: a, Value: b}
	return nil
}

func (c CanEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{c.ID, c.Value})
}

func (c *CanEntry) UnmarshalJSON(raw []byte) error {
	a, b, err := decodeIntPair(raw)
	if err != nil {
		return err
	}
	*c = CanEntry{ID: a, Value: b}
	return nil
}

// fixAlias avoids recursing into Fix's own marshalers.
type fixAlias Fix

type fixWire struct {
	Timestamp *int64 `json:"timestamp"`
	fixAlias
}

// MarshalJSON emits the timestamp as unix seconds, or null when the fix was
// taken without time sync. Absent stays absent.
func (f Fix) MarshalJSON() ([]byte, error) {
	w := fixWire{fixAlias: fixAlias(f)}
	if f.Timestamp != nil {
		ts := f.Timestamp.Unix()
		w.Timestamp = &ts
	}
	return json.Marshal(w)
}

func (f *Fix) UnmarshalJSON(raw []byte) error {
	var g wireGps
	if err := json.Unmarshal(raw, &g); err != nil {
		return err
	}
	*f = fixFromWire(g)
	return nil
}
