package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// TimestampLayout is the only date format accepted on the wire.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// TimestampPattern mirrors TimestampLayout for payload validation.
const TimestampPattern = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`

// Timestamp is a UTC, millisecond precision instant. It is stored as a BSON
// datetime and serialised to JSON using TimestampLayout.
type Timestamp struct {
	time.Time
}

// Now returns the current time truncated to what Mongo can store.
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// ParseTimestamp parses a value in TimestampLayout.
func ParseTimestamp(value string) (Timestamp, error) {
	t, err := time.Parse(TimestampLayout, value)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return NewTimestamp(t), nil
}

func (t Timestamp) String() string {
	return t.UTC().Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(t.Time)
}

func (t *Timestamp) UnmarshalBSONValue(bt bsontype.Type, data []byte) error {
	var decoded time.Time
	if err := (bson.RawValue{Type: bt, Value: data}).Unmarshal(&decoded); err != nil {
		return err
	}
	*t = NewTimestamp(decoded)
	return nil
}

// Ptr returns a pointer to a copy of t.
func (t Timestamp) Ptr() *Timestamp {
	return &t
}
