package memory

import (
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is a process-local repository for tests and single-node deployments
type Memory struct {
	assessment *assessmentRepository
	memory     *memoryRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		assessment: newAssessmentRepository(),
		memory:     newMemoryRepository(),
	}
}

func (m *Memory) Assessment() interfaces.AssessmentRepository {
	return m.assessment
}

func (m *Memory) Memory() interfaces.MemoryRepository {
	return m.memory
}

func (m *Memory) Close() error {
	return nil
}
