// Package notify holds the canonical notification pipeline state: the
// normalizer that turns server payloads into model.Notification values and
// the ordered in-memory store shared by every UI surface.
package notify

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"github.com/nhle/finpal/internal/model"
)

// InvalidPayloadError reports a notification payload that cannot be turned
// into a canonical Notification.
type InvalidPayloadError struct {
	Field  string
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid notification payload: %s", e.Reason)
	}
	return fmt.Sprintf("invalid notification payload: %s %s", e.Field, e.Reason)
}

// IsInvalidPayload reports whether err (or any error in its chain) is an
// InvalidPayloadError.
func IsInvalidPayload(err error) bool {
	var invalid *InvalidPayloadError
	return errors.As(err, &invalid)
}

// timestampLayouts are tried in order. Zone-less values are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Normalize maps a raw server payload onto a canonical Notification. Both
// snake_case and camelCase spellings are accepted for agent_id, is_read and
// action_required; when both spellings are present the booleans are OR-ed.
//
// Payloads without an id, agent or timestamp, or with values outside the
// closed agent/type/priority sets, are rejected with *InvalidPayloadError.
// A missing type defaults to proactive and a missing priority to medium.
func Normalize(raw []byte) (model.Notification, error) {
	if !gjson.ValidBytes(raw) {
		return model.Notification{}, &InvalidPayloadError{Reason: "not valid JSON"}
	}
	return normalizeResult(gjson.ParseBytes(raw))
}

func normalizeResult(obj gjson.Result) (model.Notification, error) {
	if !obj.IsObject() {
		return model.Notification{}, &InvalidPayloadError{Reason: "not a JSON object"}
	}

	id := lookup(obj, "id")
	if id == "" {
		return model.Notification{}, &InvalidPayloadError{Field: "id", Reason: "is missing"}
	}

	agent := lookup(obj, "agent_id", "agentId")
	if agent == "" {
		return model.Notification{}, &InvalidPayloadError{Field: "agentId", Reason: "is missing"}
	}

	ts, err := parseTimestamp(obj.Get("timestamp"))
	if err != nil {
		return model.Notification{}, err
	}

	n := model.Notification{
		ID:             id,
		AgentID:        model.AgentID(agent),
		Type:           model.NotificationType(lookup(obj, "type")),
		Title:          obj.Get("title").String(),
		Message:        obj.Get("message").String(),
		Timestamp:      ts,
		IsRead:         obj.Get("is_read").Bool() || obj.Get("isRead").Bool(),
		Priority:       model.Priority(lookup(obj, "priority")),
		ActionRequired: obj.Get("action_required").Bool() || obj.Get("actionRequired").Bool(),
	}
	if n.Type == "" {
		n.Type = model.TypeProactive
	}
	if n.Priority == "" {
		n.Priority = model.PriorityMedium
	}

	if err := validate.Struct(n); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return model.Notification{}, &InvalidPayloadError{
				Field:  fe.Field(),
				Reason: fmt.Sprintf("has unknown value %q", fe.Value()),
			}
		}
		return model.Notification{}, fmt.Errorf("validating notification: %w", err)
	}

	return n, nil
}

// lookup returns the first non-null, non-blank value among keys.
func lookup(obj gjson.Result, keys ...string) string {
	for _, k := range keys {
		r := obj.Get(k)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		if s := strings.TrimSpace(r.String()); s != "" {
			return s
		}
	}
	return ""
}

func parseTimestamp(r gjson.Result) (time.Time, error) {
	switch r.Type {
	case gjson.Number:
		return time.UnixMilli(r.Int()).UTC(), nil
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if s == "" {
			break
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, &InvalidPayloadError{
			Field:  "timestamp",
			Reason: fmt.Sprintf("has unparseable value %q", s),
		}
	}
	return time.Time{}, &InvalidPayloadError{Field: "timestamp", Reason: "is missing"}
}
