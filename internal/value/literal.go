package value

import (
	"fmt"

	"github.com/roach88/absim/internal/ir"
)

// FromLiteral converts an IR constant into a value.
func (d Domain) FromLiteral(l ir.Literal) (Value, error) {
	switch l.Kind() {
	case ir.LitInt:
		return Int(*l.Int), nil
	case ir.LitBool:
		return Bool(*l.Bool), nil
	case ir.LitStr:
		return Str(*l.Str), nil
	case ir.LitEvent:
		return Event(l.Event), nil
	case ir.LitUnit:
		if !l.Unit.Valid() {
			return nil, fmt.Errorf("unknown time unit %q", l.Unit)
		}
		return Unit(l.Unit), nil
	case ir.LitTime:
		if !l.Time.Unit.Valid() {
			return nil, fmt.Errorf("unknown time unit %q", l.Time.Unit)
		}
		t, err := NewTime(l.Time.Amount, l.Time.Unit)
		if err != nil {
			return nil, err
		}
		return t, nil
	case ir.LitChannel:
		return Channel(l.Channel), nil
	case ir.LitPort:
		return Port(l.Port), nil
	case ir.LitNull:
		return Null{}, nil
	case ir.LitUnknown:
		return Top{}, nil
	case ir.LitOneOf:
		members := make([]Value, 0, len(l.OneOf))
		for i, m := range l.OneOf {
			v, err := d.FromLiteral(m)
			if err != nil {
				return nil, fmt.Errorf("one_of[%d]: %w", i, err)
			}
			members = append(members, v)
		}
		return d.Join(members...), nil
	}
	return nil, fmt.Errorf("literal must set exactly one field")
}
