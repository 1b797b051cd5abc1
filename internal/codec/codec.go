package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformed is returned for any payload that does not decode cleanly.
// Callers treat it as fatal for the message; no partial value is returned.
var ErrMalformed = errors.New("malformed payload")

func EncodeReplayBatch(batch ReplayBatch) ([]byte, error) {
	return marshal("replay batch", batch)
}

func DecodeReplayBatch(data []byte) (ReplayBatch, error) {
	var batch ReplayBatch
	if err := unmarshal("replay batch", data, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func EncodePriorityUpdate(update PriorityUpdate) ([]byte, error) {
	if err := checkAligned(update); err != nil {
		return nil, err
	}
	return marshal("priority update", update)
}

func DecodePriorityUpdate(data []byte) (PriorityUpdate, error) {
	var update PriorityUpdate
	if err := unmarshal("priority update", data, &update); err != nil {
		return PriorityUpdate{}, err
	}
	if err := checkAligned(update); err != nil {
		return PriorityUpdate{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return update, nil
}

func EncodeSnapshot(snapshot ParameterSnapshot) ([]byte, error) {
	return marshal("parameter snapshot", snapshot)
}

func DecodeSnapshot(data []byte) (ParameterSnapshot, error) {
	var snapshot ParameterSnapshot
	if err := unmarshal("parameter snapshot", data, &snapshot); err != nil {
		return ParameterSnapshot{}, err
	}
	for i, t := range snapshot.Tensors {
		want, ok := shapeSize(t.Shape)
		if !ok {
			return ParameterSnapshot{}, fmt.Errorf("%w: tensor %d (%s) has negative dimension in shape %v",
				ErrMalformed, i, t.Name, t.Shape)
		}
		if len(t.Shape) > 0 && want != len(t.Data) {
			return ParameterSnapshot{}, fmt.Errorf("%w: tensor %d (%s) shape %v wants %d values, got %d",
				ErrMalformed, i, t.Name, t.Shape, want, len(t.Data))
		}
	}
	return snapshot, nil
}

func checkAligned(update PriorityUpdate) error {
	if len(update.Indices) != len(update.Errors) {
		return fmt.Errorf("priority update has %d index rows but %d error rows",
			len(update.Indices), len(update.Errors))
	}
	for i := range update.Indices {
		if len(update.Indices[i]) != len(update.Errors[i]) {
			return fmt.Errorf("agent %d: %d indices but %d errors",
				i, len(update.Indices[i]), len(update.Errors[i]))
		}
	}
	return nil
}

func shapeSize(shape []int) (int, bool) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		n *= d
	}
	return n, true
}

func marshal(kind string, v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return data, nil
}

func unmarshal(kind string, data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("decode %s: %w: empty input", kind, ErrMalformed)
	}
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w: %v", kind, ErrMalformed, err)
	}
	if r.Len() != 0 {
		return fmt.Errorf("decode %s: %w: %d trailing bytes", kind, ErrMalformed, r.Len())
	}
	return nil
}
