package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"agora/contexts/participation/container-builder/domain/entities"
	domainerrors "agora/contexts/participation/container-builder/domain/errors"
	"agora/contexts/participation/container-builder/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu         sync.Mutex
	containers map[string]entities.SignedContainer
	options    map[string]map[string]string
}

func NewStore() *Store {
	return &Store{
		containers: make(map[string]entities.SignedContainer),
		options:    make(map[string]map[string]string),
	}
}

func (s *Store) SaveContainer(_ context.Context, container entities.SignedContainer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := container
	copied.Payload = append([]byte(nil), container.Payload...)
	s.containers[container.ContainerRef] = copied
	return nil
}

func (s *Store) GetContainer(_ context.Context, containerRef string) (entities.SignedContainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	container, ok := s.containers[strings.TrimSpace(containerRef)]
	if !ok {
		return entities.SignedContainer{}, domainerrors.ErrContainerNotFound
	}
	copied := container
	copied.Payload = append([]byte(nil), container.Payload...)
	return copied, nil
}

func (s *Store) ListOptionValues(_ context.Context, voteID string, optionIDs []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byOption := s.options[strings.TrimSpace(voteID)]
	values := make([]string, 0, len(optionIDs))
	for _, optionID := range optionIDs {
		value, ok := byOption[strings.TrimSpace(optionID)]
		if !ok {
			return nil, domainerrors.ErrInvalidContainerInput
		}
		values = append(values, value)
	}
	return values, nil
}

// SetOptionValue seeds the option catalog for tests and local wiring.
func (s *Store) SetOptionValue(voteID string, optionID string, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.options[voteID] == nil {
		s.options[voteID] = make(map[string]string)
	}
	s.options[voteID][optionID] = value
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.ArtifactStore = (*Store)(nil)
var _ ports.OptionCatalog = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
