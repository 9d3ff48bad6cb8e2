package metadata

import (
	"fmt"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Field describes one stateful handler field: a value captured into the
// conversation after a step and written back before the next one.
type Field struct {
	name string
	get  func(handler any) (any, error)
	set  func(handler any, value any) error
}

// Name returns the attribute name the field is stored under.
func (f Field) Name() string { return f.name }

// Get reads the field off the handler.
func (f Field) Get(handler any) (any, error) {
	v, err := f.get(handler)
	if err != nil {
		return nil, &domain.FieldError{Handler: typeName(handler), Field: f.name, Err: err}
	}
	return v, nil
}

// Set writes a stored value onto the handler.
func (f Field) Set(handler any, value any) error {
	if err := f.set(handler, value); err != nil {
		return &domain.FieldError{Handler: typeName(handler), Field: f.name, Err: err}
	}
	return nil
}

// Bind describes a field through a pointer accessor. The accessor is written
// in the handler's own package, so unexported fields can be bound without
// any reflection on private members.
//
//	metadata.Bind("count", func(w *Wizard) *int { return &w.count })
//
// Stored values that are not already of type T (for example numbers that went
// through a JSON store) are converted with mapstructure.
func Bind[H any, T any](name string, ref func(H) *T) Field {
	return Field{
		name: name,
		get: func(handler any) (any, error) {
			h, ok := handler.(H)
			if !ok {
				return nil, fmt.Errorf("handler is %T, want %s", handler, typeOf[H]())
			}
			return *ref(h), nil
		},
		set: func(handler any, value any) error {
			h, ok := handler.(H)
			if !ok {
				return fmt.Errorf("handler is %T, want %s", handler, typeOf[H]())
			}
			return assign(ref(h), value)
		},
	}
}

// StateCarrier is implemented by handlers that prefer to export and import
// their state themselves instead of binding individual fields.
type StateCarrier interface {
	ExportState() map[string]any
	ImportState(state map[string]any) error
}

// Carried describes the named entries of a StateCarrier as fields.
func Carried(names ...string) []Field {
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, Field{
			name: name,
			get: func(handler any) (any, error) {
				c, ok := handler.(StateCarrier)
				if !ok {
					return nil, fmt.Errorf("%T does not implement StateCarrier", handler)
				}
				return c.ExportState()[name], nil
			},
			set: func(handler any, value any) error {
				c, ok := handler.(StateCarrier)
				if !ok {
					return fmt.Errorf("%T does not implement StateCarrier", handler)
				}
				return c.ImportState(map[string]any{name: value})
			},
		})
	}
	return fields
}

func assign[T any](dst *T, value any) error {
	switch v := value.(type) {
	case nil:
		var zero T
		*dst = zero
		return nil
	case T:
		*dst = v
		return nil
	}

	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "json",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
		),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(value); err != nil {
		return fmt.Errorf("cannot convert %T: %w", value, err)
	}
	*dst = out
	return nil
}
