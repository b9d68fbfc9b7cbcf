package core

import (
	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// toStorageMemory converts a core.Memory to storage.Memory.
//
// This function is used internally to convert between package types
// to avoid circular dependencies.
func toStorageMemory(m *Memory) *storage.Memory {
	return &storage.Memory{
		ID:          m.ID,
		AgentID:     m.AgentID,
		Content:     m.Content,
		ContentType: m.ContentType,
		Importance:  m.Importance,
		Source:      m.Source,
		Keywords:    m.Keywords,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
	}
}

// fromStorageMemory converts a storage.Memory to core.Memory.
func fromStorageMemory(m *storage.Memory) *Memory {
	return &Memory{
		ID:          m.ID,
		AgentID:     m.AgentID,
		Content:     m.Content,
		ContentType: m.ContentType,
		Importance:  m.Importance,
		Source:      m.Source,
		Keywords:    m.Keywords,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
	}
}

// fromStorageMemories converts a slice of storage.Memory to a slice of core.Memory.
func fromStorageMemories(memories []*storage.Memory) []*Memory {
	result := make([]*Memory, len(memories))
	for i, m := range memories {
		result[i] = fromStorageMemory(m)
	}
	return result
}
