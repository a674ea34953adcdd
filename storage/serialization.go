// Copyright 2025 Centauraa Health
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/centauraa/angel-context/core"
)

var (
	float32SliceSer = ord.NewSliceSer[float32](varint.Float32)
	stringSliceSer  = ord.NewSliceSer[string](ord.String)
)

// chunkSer is the MUS serializer for core.Chunk. Field order is the wire
// format; append new fields at the end only.
type chunkSer struct{}

// ChunkMUS serializes chunks for the vector index.
var ChunkMUS = chunkSer{}

var _ mus.Serializer[core.Chunk] = ChunkMUS

func (chunkSer) Marshal(c core.Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(c.ConversationId, bs)
	n += ord.String.Marshal(c.UserId, bs[n:])
	n += varint.Int.Marshal(c.TurnIndex, bs[n:])
	n += ord.String.Marshal(c.Speaker, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	n += float32SliceSer.Marshal(c.Vector, bs[n:])
	n += varint.Int.Marshal(int(c.CrisisLevel), bs[n:])
	n += ord.Bool.Marshal(c.Suicidal, bs[n:])
	n += ord.Bool.Marshal(c.SelfHarm, bs[n:])
	n += stringSliceSer.Marshal(c.Symptoms, bs[n:])
	n += stringSliceSer.Marshal(c.Coping, bs[n:])
	n += varint.Int.Marshal(int(c.Outcome), bs[n:])
	return n
}

func (chunkSer) Unmarshal(bs []byte) (c core.Chunk, n int, err error) {
	var n1 int
	if c.ConversationId, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if c.UserId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.TurnIndex, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Speaker, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Vector, n1, err = float32SliceSer.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var level int
	if level, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	c.CrisisLevel = core.CrisisLevel(level)
	if c.Suicidal, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.SelfHarm, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Symptoms, n1, err = stringSliceSer.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Coping, n1, err = stringSliceSer.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var outcome int
	if outcome, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	c.Outcome = core.Outcome(outcome)
	return
}

func (chunkSer) Size(c core.Chunk) (size int) {
	size = ord.String.Size(c.ConversationId)
	size += ord.String.Size(c.UserId)
	size += varint.Int.Size(c.TurnIndex)
	size += ord.String.Size(c.Speaker)
	size += ord.String.Size(c.Text)
	size += float32SliceSer.Size(c.Vector)
	size += varint.Int.Size(int(c.CrisisLevel))
	size += ord.Bool.Size(c.Suicidal)
	size += ord.Bool.Size(c.SelfHarm)
	size += stringSliceSer.Size(c.Symptoms)
	size += stringSliceSer.Size(c.Coping)
	size += varint.Int.Size(int(c.Outcome))
	return size
}

func (chunkSer) Skip(bs []byte) (n int, err error) {
	var n1 int
	for i, skip := range []func([]byte) (int, error){
		ord.String.Skip,
		ord.String.Skip,
		varint.Int.Skip,
		ord.String.Skip,
		ord.String.Skip,
		float32SliceSer.Skip,
		varint.Int.Skip,
		ord.Bool.Skip,
		ord.Bool.Skip,
		stringSliceSer.Skip,
		stringSliceSer.Skip,
		varint.Int.Skip,
	} {
		if n1, err = skip(bs[n:]); err != nil {
			return n, fmt.Errorf("field %d: %w", i, err)
		}
		n += n1
	}
	return n, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, ChunkMUS.Size(*chunk))
	ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	return &chunk, nil
}
