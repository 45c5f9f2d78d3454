package backend

import (
	"encoding/json"
	"fmt"

	"github.com/rbright/listend/internal/events"
	"github.com/rbright/listend/internal/session"
	"github.com/rbright/listend/internal/transcript"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// envelope is the JSON shape of one event on the Events stream.
type envelope struct {
	Topic   events.Topic    `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// batchWire is the wire form of a batch event. Response holds a stream chunk on
// batchProgress and the whole result on batchResponse.
type batchWire struct {
	SessionID  string           `json:"session_id"`
	Type       events.BatchKind `json:"type"`
	Response   json.RawMessage  `json:"response,omitempty"`
	Percentage float64          `json:"percentage,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// DecodeEvent converts one stream envelope into a typed event payload.
func DecodeEvent(msg *structpb.Struct) (events.Payload, error) {
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal event envelope: %w", err)
	}
	return decodeEnvelopeJSON(raw)
}

func decodeEnvelopeJSON(raw []byte) (events.Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("event envelope %q has no payload", env.Topic)
	}

	switch env.Topic {
	case events.TopicLifecycle:
		return decodePayload[events.Lifecycle](env)
	case events.TopicProgress:
		return decodePayload[events.Progress](env)
	case events.TopicError:
		return decodePayload[events.Error](env)
	case events.TopicData:
		return decodePayload[events.Data](env)
	case events.TopicBatch:
		return decodeBatch(env.Payload)
	default:
		return nil, fmt.Errorf("unknown event topic %q", env.Topic)
	}
}

func decodePayload[T events.Payload](env envelope) (events.Payload, error) {
	var payload T
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", env.Topic, err)
	}
	return payload, nil
}

func decodeBatch(raw json.RawMessage) (events.Payload, error) {
	var wire batchWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode batch event: %w", err)
	}

	ev := events.Batch{
		SessionID:  wire.SessionID,
		Kind:       wire.Type,
		Percentage: wire.Percentage,
		Error:      wire.Error,
	}
	if len(wire.Response) == 0 {
		return ev, nil
	}

	switch wire.Type {
	case events.BatchProgress:
		var chunk transcript.StreamResponse
		if err := json.Unmarshal(wire.Response, &chunk); err != nil {
			return nil, fmt.Errorf("decode batch progress chunk: %w", err)
		}
		ev.Chunk = &chunk
	case events.BatchResponse:
		var result transcript.BatchResponse
		if err := json.Unmarshal(wire.Response, &result); err != nil {
			return nil, fmt.Errorf("decode batch response: %w", err)
		}
		ev.Result = &result
	}
	return ev, nil
}

// EncodeEvent builds the stream envelope for one event.
func EncodeEvent(event events.Payload) (*structpb.Struct, error) {
	var payload any = event
	if batch, ok := event.(events.Batch); ok {
		wire := batchWire{
			SessionID:  batch.SessionID,
			Type:       batch.Kind,
			Percentage: batch.Percentage,
			Error:      batch.Error,
		}
		var response any
		switch {
		case batch.Chunk != nil:
			response = batch.Chunk
		case batch.Result != nil:
			response = batch.Result
		}
		if response != nil {
			b, err := json.Marshal(response)
			if err != nil {
				return nil, fmt.Errorf("encode batch response: %w", err)
			}
			wire.Response = b
		}
		payload = wire
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Topic(), err)
	}
	raw, err := json.Marshal(envelope{Topic: event.Topic(), Payload: body})
	if err != nil {
		return nil, fmt.Errorf("encode event envelope: %w", err)
	}

	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("convert event envelope: %w", err)
	}
	return msg, nil
}

func sessionRequest(params session.SessionParams) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"session_id":     params.SessionID,
		"languages":      stringList(params.Languages),
		"model":          params.Model,
		"keywords":       stringList(params.Keywords),
		"record_enabled": params.RecordEnabled,
		"input_device":   params.InputDevice,
	})
}

func batchRequest(params session.BatchParams, provider string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"session_id": params.SessionID,
		"file_path":  params.FilePath,
		"languages":  stringList(params.Languages),
		"model":      params.Model,
		"keywords":   stringList(params.Keywords),
		"provider":   provider,
	})
}

func stringList(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
